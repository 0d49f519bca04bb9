// Package restapi provides the main router and initialization for REST API endpoints.
package restapi

import (
	"github.com/Cognio-so/agt-tester/model"
	"github.com/Cognio-so/agt-tester/restapi/modules/admin"
	"github.com/Cognio-so/agt-tester/restapi/modules/auth"
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// Deps carries what the routes need
type Deps struct {
	Service *auth.Service
	// Google is nil when Google sign-in is not configured
	Google auth.GoogleProvider
	Schema graphql.Schema
	// Limiter guards the credential endpoints; nil disables it
	Limiter fiber.Handler
}

// SetupRoutes configures all REST API routes and the GraphQL endpoint.
func SetupRoutes(app *fiber.App, d Deps) {
	s := d.Service
	limit := d.Limiter
	if limit == nil {
		limit = func(c *fiber.Ctx) error { return c.Next() }
	}
	requireAuth := auth.RequireAuth(s)
	adminOnly := auth.RequireRole(model.RoleAdmin)

	api := app.Group("/api")

	// GraphQL reports (Admin)
	api.Post("/graphql", requireAuth, adminOnly, GraphQLHandler(d.Schema))

	// Public Routes
	authGroup := api.Group("/auth")
	authGroup.Post("/signup", limit, auth.Signup(s))
	authGroup.Post("/verify-email", limit, auth.VerifyEmail(s))
	authGroup.Post("/login", limit, auth.Login(s))
	authGroup.Post("/logout", auth.Logout(s))
	authGroup.Post("/forgot-password", limit, auth.ForgotPassword(s))
	authGroup.Post("/reset-password/:token", limit, auth.ResetPassword(s))
	authGroup.Post("/refresh-token", auth.RefreshToken(s))

	// Google Auth Routes
	if d.Google != nil {
		authGroup.Get("/google", auth.GoogleAuth(s, d.Google))
		authGroup.Get("/google/callback", auth.GoogleCallback(s, d.Google))
	}

	// Account Routes
	authGroup.Get("/me", requireAuth, auth.Me(s))
	authGroup.Patch("/set-inactive", requireAuth, auth.SetInactive(s))
	authGroup.Patch("/profile", requireAuth, auth.UpdateProfile(s))
	authGroup.Patch("/profile-picture", requireAuth, auth.UpdateProfilePicture(s))
	authGroup.Patch("/change-password", requireAuth, auth.ChangePassword(s))
	authGroup.Patch("/update-password", requireAuth, auth.UpdatePassword(s))
	authGroup.Get("/api-keys", requireAuth, auth.GetAPIKeys(s))
	authGroup.Post("/api-keys", requireAuth, auth.SaveAPIKeys(s))
	authGroup.Get("/user-gpt-count/:userId", requireAuth, admin.GetUserGptCount(s))
	authGroup.Get("/user-activity/:userId", requireAuth, admin.GetUserActivity())

	// User Management (Admin)
	authGroup.Get("/all-users", requireAuth, adminOnly, admin.GetAllUsers(s))
	authGroup.Get("/users-with-gpt-counts", requireAuth, adminOnly, admin.GetUsersWithGptCounts(s))
	authGroup.Patch("/user-permissions/:userId", requireAuth, adminOnly, admin.UpdateUserPermissions(s))
	authGroup.Delete("/team-member/:userId", requireAuth, adminOnly, admin.RemoveTeamMember(s))

	// Roster Management (Admin)
	roster := authGroup.Group("/roster", requireAuth, adminOnly)
	roster.Post("/apply/content", auth.ApplyRosterFromBody(s))
	roster.Post("/apply/upload", auth.ApplyRosterFromUpload(s))

	s.Logger().Info("API routes initialized successfully")
}
