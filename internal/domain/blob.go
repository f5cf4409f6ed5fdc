package domain

// Reserved object store ids for the pictures uploaded at startup.
var (
	DefaultProfilePicID = MustParseID("64656661756c745f70726f66")
	DefaultGroupPicID   = MustParseID("64656661756c745f67727570")
	LogoID              = MustParseID("6c6f676f0000000000000000")
)
