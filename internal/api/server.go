package api

import (
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/vecollab/backend/docs"
	v1 "github.com/vecollab/backend/internal/api/handler/v1"
	"github.com/vecollab/backend/internal/api/middleware"
	"github.com/vecollab/backend/internal/config"
	"github.com/vecollab/backend/internal/metrics"
)

const maxMultipartMemory = 32 << 20

// ProfileService also backs token verification, which creates a profile on first login.
type ProfileService interface {
	v1.ProfileService
	middleware.ProfileEnsurer
}

// Services are the components the handlers delegate to.
type Services struct {
	Plans         v1.PlanService
	Posts         v1.PostService
	Spaces        v1.SpaceService
	Profiles      ProfileService
	Auth          v1.AuthService
	Notifications v1.NotificationService
	Chat          v1.ChatService
	Reports       v1.ReportService
	ACL           v1.ACLService
	Taxonomy      v1.TaxonomyService
}

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine
}

// NewServer builds the router. socket serves the websocket endpoint.
func NewServer(conf *config.AppConfig, verifier middleware.TokenVerifier, svcs Services, socket http.Handler) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()
	engine.MaxMultipartMemory = maxMultipartMemory

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()
	s.MountHandlers(middleware.NewAuthenticator(verifier, svcs.Profiles), svcs, socket)

	return s
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.Metrics())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(auth *middleware.Authenticator, svcs Services, socket http.Handler) {
	const basePath = "/api/v1"

	limiter := middleware.NewRateLimiter(s.Config.API.RateLimitRPS, s.Config.API.RateLimitBurst)

	planHandler := v1.NewPlanHandler(svcs.Plans)
	postHandler := v1.NewPostHandler(svcs.Posts)
	spaceHandler := v1.NewSpaceHandler(svcs.Spaces)
	profileHandler := v1.NewProfileHandler(svcs.Profiles, svcs.Auth)
	notificationHandler := v1.NewNotificationHandler(svcs.Notifications)
	chatHandler := v1.NewChatHandler(svcs.Chat)
	reportHandler := v1.NewReportHandler(svcs.Reports)
	adminHandler := v1.NewAdminHandler(svcs.ACL, svcs.Taxonomy)

	public := s.Router.Group(basePath, limiter.Limit())
	{
		public.GET("/personas", profileHandler.HandleListPersonas)
		public.GET("/taxonomy", adminHandler.HandleGetTaxonomy)
	}

	authed := s.Router.Group(basePath, auth.VerifyJWT(), limiter.Limit())

	plans := authed.Group("/plans")
	{
		plans.GET("", planHandler.HandleListPlans)
		plans.POST("", planHandler.HandleInsertPlan)
		plans.GET("/search", planHandler.HandleSearchPlans)
		plans.GET("/bulk", planHandler.HandleGetBulk)
		plans.GET("/:planID", planHandler.HandleGetPlan)
		plans.PUT("/:planID", planHandler.HandleUpdatePlan)
		plans.PATCH("/:planID", planHandler.HandleUpdateField)
		plans.DELETE("/:planID", planHandler.HandleDeletePlan)
		plans.POST("/:planID/steps", planHandler.HandleAppendStep)
		plans.POST("/:planID/copy", planHandler.HandleCopyPlan)
		plans.PUT("/:planID/evaluation_file", planHandler.HandlePutEvaluationFile)
		plans.DELETE("/:planID/evaluation_file", planHandler.HandleRemoveEvaluationFile)
		plans.POST("/:planID/literature_files", planHandler.HandlePutLiteratureFile)
		plans.DELETE("/:planID/literature_files/:fileID", planHandler.HandleRemoveLiteratureFile)
		plans.GET("/:planID/files/:fileID", planHandler.HandleGetPlanFile)
		plans.POST("/:planID/read_access", planHandler.HandleGrantRead)
		plans.DELETE("/:planID/read_access", planHandler.HandleRevokeRead)
		plans.POST("/:planID/write_access", planHandler.HandleGrantWrite)
		plans.DELETE("/:planID/write_access", planHandler.HandleRevokeWrite)
	}

	invitations := authed.Group("/invitations")
	{
		invitations.POST("", planHandler.HandleInvite)
		invitations.GET("/:invitationID", planHandler.HandleGetInvitation)
		invitations.POST("/:invitationID/reply", planHandler.HandleReplyInvitation)
	}

	posts := authed.Group("/posts")
	{
		posts.POST("", postHandler.HandleCreatePost)
		posts.GET("/:postID", postHandler.HandleGetPost)
		posts.PATCH("/:postID", postHandler.HandleEditPost)
		posts.DELETE("/:postID", postHandler.HandleDeletePost)
		posts.POST("/:postID/repost", postHandler.HandleRepost)
		posts.POST("/:postID/like", postHandler.HandleLike)
		posts.DELETE("/:postID/like", postHandler.HandleUnlike)
		posts.PUT("/:postID/pin", postHandler.HandlePinPost)
		posts.POST("/:postID/comments", postHandler.HandleComment)
	}

	comments := authed.Group("/comments")
	{
		comments.GET("/:commentID/post", postHandler.HandleGetByComment)
		comments.DELETE("/:commentID", postHandler.HandleDeleteComment)
		comments.PUT("/:commentID/pin", postHandler.HandlePinComment)
	}

	timeline := authed.Group("/timeline")
	{
		timeline.GET("", postHandler.HandlePersonalTimeline)
		timeline.GET("/spaces/:spaceID", postHandler.HandleSpaceTimeline)
		timeline.GET("/users/:username", postHandler.HandleUserTimeline)
		timeline.GET("/tags/:tag", postHandler.HandleTagTimeline)
	}

	spaces := authed.Group("/spaces")
	{
		spaces.GET("", spaceHandler.HandleListSpaces)
		spaces.POST("", spaceHandler.HandleCreateSpace)
		spaces.GET("/:spaceID", spaceHandler.HandleGetSpace)
		spaces.PATCH("/:spaceID", spaceHandler.HandleUpdateSpace)
		spaces.DELETE("/:spaceID", spaceHandler.HandleDeleteSpace)
		spaces.POST("/:spaceID/invite", spaceHandler.HandleInvite)
		spaces.POST("/:spaceID/invite/accept", spaceHandler.HandleAcceptInvite)
		spaces.POST("/:spaceID/invite/decline", spaceHandler.HandleDeclineInvite)
		spaces.POST("/:spaceID/request", spaceHandler.HandleRequestJoin)
		spaces.GET("/:spaceID/requests", spaceHandler.HandleJoinRequests)
		spaces.POST("/:spaceID/requests/accept", spaceHandler.HandleAcceptRequest)
		spaces.POST("/:spaceID/requests/reject", spaceHandler.HandleRejectRequest)
		spaces.POST("/:spaceID/join", spaceHandler.HandleJoin)
		spaces.POST("/:spaceID/leave", spaceHandler.HandleLeave)
		spaces.POST("/:spaceID/kick", spaceHandler.HandleKick)
		spaces.POST("/:spaceID/promote", spaceHandler.HandlePromote)
		spaces.POST("/:spaceID/demote", spaceHandler.HandleDemote)
		spaces.GET("/:spaceID/files", spaceHandler.HandleGetFiles)
		spaces.POST("/:spaceID/files", spaceHandler.HandleAddFile)
		spaces.GET("/:spaceID/files/:fileID", spaceHandler.HandleGetFile)
		spaces.DELETE("/:spaceID/files/:fileID", spaceHandler.HandleRemoveFile)
	}

	profiles := authed.Group("/profiles")
	{
		profiles.GET("", profileHandler.HandleGetProfiles)
		profiles.GET("/me", profileHandler.HandleGetMe)
		profiles.PATCH("/me", profileHandler.HandleUpdateMe)
		profiles.PUT("/me/notification_settings", profileHandler.HandleSetNotificationSettings)
		profiles.GET("/:username", profileHandler.HandleGetProfile)
		profiles.POST("/:username/follow", profileHandler.HandleFollow)
		profiles.DELETE("/:username/follow", profileHandler.HandleUnfollow)
		profiles.GET("/:username/followers", profileHandler.HandleFollowers)
	}
	authed.GET("/users/:key", profileHandler.HandleLookupUser)

	notifications := authed.Group("/notifications")
	{
		notifications.GET("", notificationHandler.HandleList)
		notifications.POST("/acknowledge", notificationHandler.HandleAcknowledgeAll)
		notifications.POST("/:notificationID/acknowledge", notificationHandler.HandleAcknowledge)
	}

	chat := authed.Group("/chat")
	{
		chat.GET("/rooms", chatHandler.HandleListRooms)
		chat.POST("/rooms", chatHandler.HandleGetOrCreateRoom)
		chat.GET("/rooms/:roomID", chatHandler.HandleGetMessages)
		chat.POST("/rooms/:roomID/messages", chatHandler.HandleSendMessage)
		chat.POST("/messages/:messageID/acknowledge", chatHandler.HandleAcknowledgeMessage)
	}

	reports := authed.Group("/reports")
	{
		reports.GET("", reportHandler.HandleListReports)
		reports.POST("", reportHandler.HandleCreateReport)
		reports.GET("/:reportID", reportHandler.HandleGetReport)
		reports.POST("/:reportID/close", reportHandler.HandleCloseReport)
		reports.POST("/:reportID/delete_item", reportHandler.HandleDeleteReportedItem)
	}

	admin := authed.Group("")
	{
		admin.GET("/acl", adminHandler.HandleGetRules)
		admin.PUT("/acl", adminHandler.HandleSetRule)
		admin.PUT("/taxonomy", adminHandler.HandlePutTaxonomy)
		admin.PUT("/admin/roles", profileHandler.HandleSetRole)
		admin.GET("/admin/profiles", profileHandler.HandleListByRole)
	}

	s.Router.GET("/healthz", v1.HandleHealthcheck)
	s.Router.GET("/metrics", gin.WrapH(metrics.Handler()))
	if socket != nil {
		s.Router.GET("/ws", gin.WrapH(socket))
	}

	// Setup Swagger UI.
	docs.SwaggerInfo.Host = s.Config.API.BaseURL
	docs.SwaggerInfo.BasePath = basePath
	s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
}
