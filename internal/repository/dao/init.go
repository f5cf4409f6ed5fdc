package dao

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

func InitTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&Profile{},
		&Plan{},
		&Invitation{},
		&Space{},
		&Post{},
		&ACLRule{},
		&Notification{},
		&ChatRoom{},
		&ChatMessage{},
		&ChatSendState{},
		&Report{},
		&Taxonomy{},
	)
}

type index struct {
	name   string
	unique bool
	def    string
}

// indexes are the ones gorm tags cannot express.
var indexes = []index{
	{"idx_posts_text", false, "ON posts USING GIN (to_tsvector('simple', text))"},
	{"idx_posts_tags", false, "ON posts USING GIN (tags)"},
	{"idx_posts_files", false, "ON posts USING GIN (files jsonb_path_ops)"},
	{"idx_posts_comments", false, "ON posts USING GIN (comments jsonb_path_ops)"},
	{"idx_plans_read_access", false, "ON plans USING GIN (read_access)"},
	{"idx_plans_write_access", false, "ON plans USING GIN (write_access)"},
	{"idx_spaces_members", false, "ON spaces USING GIN (members)"},
	{"idx_profiles_follows", false, "ON profiles USING GIN (follows)"},
	{"idx_chat_rooms_member_key_name", true, "ON chat_rooms (member_key, COALESCE(name, ''))"},
}

// EnsureIndexes creates the secondary indexes that are missing. With force every index is
// dropped and rebuilt.
func EnsureIndexes(ctx context.Context, db *gorm.DB, force bool) error {
	tx := db.WithContext(ctx)
	for _, idx := range indexes {
		if force {
			if err := tx.Exec("DROP INDEX IF EXISTS " + idx.name).Error; err != nil {
				return fmt.Errorf("drop %s -> %w", idx.name, err)
			}
		}
		if err := tx.Exec(createIndexSQL(idx)).Error; err != nil {
			return fmt.Errorf("create %s -> %w", idx.name, err)
		}
	}

	return nil
}

func createIndexSQL(idx index) string {
	unique := ""
	if idx.unique {
		unique = "UNIQUE "
	}

	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s %s", unique, idx.name, idx.def)
}

// Indexes binds EnsureIndexes to a connection.
type Indexes struct {
	db *gorm.DB
}

func NewIndexes(db *gorm.DB) *Indexes {
	return &Indexes{
		db: db,
	}
}

func (i *Indexes) Ensure(ctx context.Context, force bool) error {
	return EnsureIndexes(ctx, i.db, force)
}
