package http

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/SophieEDesign/marketinghub/internal/config"
	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/service"
)

type Services struct {
	Users       *service.UserService
	Tables      *service.TableService
	Views       *service.ViewService
	Records     *service.RecordService
	Pages       *service.PageService
	Attachments *service.AttachmentService
}

func NewRouter(cfg config.Config, svc Services) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: cfg.BodyLimitMB * 1024 * 1024,
	})
	app.Use(cors.New())

	app.Get("/api/v1/instance/profile", func(c *fiber.Ctx) error {
		return c.JSON(profileResponse{
			Name:    "marketinghub",
			Version: "1",
		})
	})

	app.Post("/api/v1/auth/signin", func(c *fiber.Ctx) error {
		var req signInRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		user, accessToken, err := svc.Users.SignInWithPassword(c.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				return badRequest(c, "unmatched username and password")
			}
			return internalError(c, err)
		}
		return c.JSON(signInResponse{
			User:        toAPIUser(user),
			AccessToken: accessToken,
		})
	})

	app.Post("/api/v1/users", func(c *fiber.Ctx) error {
		var req createUserRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		creator, err := OptionalAuthenticateToken(c, svc.Users)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "invalid access token",
			})
		}
		user, err := svc.Users.CreateUser(c.Context(), creator, service.CreateUserInput{
			Username:    req.Username,
			DisplayName: req.DisplayName,
			Password:    req.Password,
			Role:        req.Role,
		}, cfg.AllowRegistration)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidUsername):
				return badRequest(c, "invalid username")
			case errors.Is(err, service.ErrInvalidDisplayName):
				return badRequest(c, "invalid displayName")
			case errors.Is(err, service.ErrInvalidPassword):
				return badRequest(c, "invalid password")
			case errors.Is(err, service.ErrInvalidRole):
				return badRequest(c, "invalid role")
			case errors.Is(err, service.ErrUsernameAlreadyExists):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "username already exists"})
			case errors.Is(err, service.ErrRegistrationDisabled):
				return forbidden(c, "user registration is not allowed")
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(toAPIUser(user))
	})

	api := app.Group("/api/v1", AuthMiddleware(svc.Users))

	api.Get("/auth/me", func(c *fiber.Ctx) error {
		return c.JSON(toAPIUser(CurrentUser(c)))
	})

	api.Post("/auth/tokens", func(c *fiber.Ctx) error {
		var req createTokenRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		var expiresAt *time.Time
		if strings.TrimSpace(req.ExpiresAt) != "" {
			t, err := time.Parse(time.RFC3339, req.ExpiresAt)
			if err != nil {
				return badRequest(c, "invalid expiresAt")
			}
			expiresAt = &t
		}
		token, err := svc.Users.CreateAccessToken(c.Context(), CurrentUser(c).ID, req.Description, expiresAt)
		if err != nil {
			if errors.Is(err, service.ErrInvalidTokenExpiry) {
				return badRequest(c, "invalid expiresAt")
			}
			return internalError(c, err)
		}
		return c.JSON(fiber.Map{"accessToken": token})
	})

	api.Delete("/auth/tokens/:id", func(c *fiber.Ctx) error {
		tokenID, err := parseID(c.Params("id"))
		if err != nil {
			return badRequest(c, "invalid token id")
		}
		if _, err := svc.Users.RevokeAccessTokenByID(c.Context(), tokenID); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return notFound(c, "token not found")
			case errors.Is(err, service.ErrTokenAlreadyRevoked):
				return badRequest(c, "token already revoked")
			default:
				return internalError(c, err)
			}
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	registerTableRoutes(api, svc)
	registerViewRoutes(api, svc)
	registerRecordRoutes(api, svc)
	registerPageRoutes(api, svc)
	registerAttachmentRoutes(api, svc)

	return app
}

func registerTableRoutes(api fiber.Router, svc Services) {
	api.Post("/tables", RequireEditor(), func(c *fiber.Ctx) error {
		var req createTableRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		table, err := svc.Tables.CreateTable(c.Context(), req.Name)
		if err != nil {
			if errors.Is(err, service.ErrInvalidTableName) {
				return badRequest(c, "invalid table name")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPITable(table))
	})

	api.Get("/tables", func(c *fiber.Ctx) error {
		tables, err := svc.Tables.ListTables(c.Context())
		if err != nil {
			return internalError(c, err)
		}
		out := make([]apiTable, 0, len(tables))
		for _, table := range tables {
			out = append(out, toAPITable(table))
		}
		return c.JSON(fiber.Map{"tables": out})
	})

	api.Get("/tables/:id", func(c *fiber.Ctx) error {
		table, err := svc.Tables.GetTable(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "table not found")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPITable(table))
	})

	api.Patch("/tables/:id", RequireEditor(), func(c *fiber.Ctx) error {
		var req createTableRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if err := svc.Tables.RenameTable(c.Context(), c.Params("id"), req.Name); err != nil {
			if errors.Is(err, service.ErrInvalidTableName) {
				return badRequest(c, "invalid table name")
			}
			return internalError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Delete("/tables/:id", RequireEditor(), func(c *fiber.Ctx) error {
		if err := svc.Tables.DeleteTable(c.Context(), c.Params("id")); err != nil {
			return internalError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Post("/tables/:id/fields", RequireEditor(), func(c *fiber.Ctx) error {
		var req createFieldRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		field, err := svc.Tables.CreateField(c.Context(), models.Field{
			TableID: c.Params("id"),
			Name:    req.Name,
			Type:    models.FieldType(req.Type),
			Options: models.FieldOptions{
				Choices:    req.Options.Choices,
				Expression: req.Options.Expression,
				LinkedView: req.Options.LinkedView,
			},
			OrderIndex: req.OrderIndex,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidFieldName), errors.Is(err, service.ErrInvalidFieldType):
				return badRequest(c, err.Error())
			case errors.Is(err, service.ErrFieldExists):
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "field already exists"})
			default:
				return badRequest(c, err.Error())
			}
		}
		return c.JSON(toAPIField(field))
	})

	api.Get("/tables/:id/fields", func(c *fiber.Ctx) error {
		fields, err := svc.Tables.ListFields(c.Context(), c.Params("id"))
		if err != nil {
			return internalError(c, err)
		}
		out := make([]apiField, 0, len(fields))
		for _, field := range fields {
			out = append(out, toAPIField(field))
		}
		return c.JSON(fiber.Map{"fields": out})
	})

	api.Patch("/fields/:id", RequireEditor(), func(c *fiber.Ctx) error {
		var req apiFieldOptions
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		err := svc.Tables.UpdateFieldOptions(c.Context(), c.Params("id"), models.FieldOptions{
			Choices:    req.Choices,
			Expression: req.Expression,
			LinkedView: req.LinkedView,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "field not found")
			}
			return badRequest(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Delete("/fields/:id", RequireEditor(), func(c *fiber.Ctx) error {
		if err := svc.Tables.DeleteField(c.Context(), c.Params("id")); err != nil {
			return internalError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func registerViewRoutes(api fiber.Router, svc Services) {
	api.Post("/tables/:id/views", RequireEditor(), func(c *fiber.Ctx) error {
		var req createViewRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		view, err := svc.Views.CreateView(c.Context(), c.Params("id"), req.Name, models.ViewType(req.Type))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidViewName), errors.Is(err, service.ErrInvalidViewType):
				return badRequest(c, err.Error())
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(toAPIView(view))
	})

	api.Get("/tables/:id/views", func(c *fiber.Ctx) error {
		views, err := svc.Views.ListViews(c.Context(), c.Params("id"))
		if err != nil {
			return internalError(c, err)
		}
		out := make([]apiView, 0, len(views))
		for _, view := range views {
			out = append(out, toAPIView(view))
		}
		return c.JSON(fiber.Map{"views": out})
	})

	api.Get("/views/:id", func(c *fiber.Ctx) error {
		view, err := svc.Views.GetView(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "view not found")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIView(view))
	})

	api.Delete("/views/:id", RequireEditor(), func(c *fiber.Ctx) error {
		if err := svc.Views.DeleteView(c.Context(), c.Params("id")); err != nil {
			return internalError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Put("/views/:id/filters", RequireEditor(), func(c *fiber.Ctx) error {
		var req saveFiltersRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		viewID := c.Params("id")
		err := svc.Views.SaveFilters(c.Context(), viewID, toModelGroups(viewID, req.Groups), toModelFilters(viewID, req.Filters))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "view not found")
			}
			return badRequest(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/views/:id/filters", func(c *fiber.Ctx) error {
		filters, groups, err := svc.Views.LoadFilters(c.Context(), c.Params("id"))
		if err != nil {
			return internalError(c, err)
		}
		return c.JSON(filtersResponse{
			Groups:  toAPIGroups(groups),
			Filters: toAPIFilters(filters),
		})
	})

	api.Put("/views/:id/sorts", RequireEditor(), func(c *fiber.Ctx) error {
		var req struct {
			Sorts []apiSort `json:"sorts"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		viewID := c.Params("id")
		sorts := make([]models.ViewSort, 0, len(req.Sorts))
		for _, s := range req.Sorts {
			sorts = append(sorts, models.ViewSort{
				ViewID:     viewID,
				FieldName:  s.FieldName,
				Direction:  models.SortDirection(s.Direction),
				OrderIndex: s.OrderIndex,
			})
		}
		if err := svc.Views.SaveSorts(c.Context(), viewID, sorts); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "view not found")
			}
			return badRequest(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/views/:id/sorts", func(c *fiber.Ctx) error {
		sorts, err := svc.Views.ListSorts(c.Context(), c.Params("id"))
		if err != nil {
			return internalError(c, err)
		}
		out := make([]apiSort, 0, len(sorts))
		for _, s := range sorts {
			out = append(out, apiSort{FieldName: s.FieldName, Direction: string(s.Direction), OrderIndex: s.OrderIndex})
		}
		return c.JSON(fiber.Map{"sorts": out})
	})

	api.Put("/views/:id/fields", RequireEditor(), func(c *fiber.Ctx) error {
		var req struct {
			Fields []apiViewField `json:"fields"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		viewID := c.Params("id")
		viewFields := make([]models.ViewField, 0, len(req.Fields))
		for _, f := range req.Fields {
			viewFields = append(viewFields, models.ViewField{
				ViewID:     viewID,
				FieldName:  f.FieldName,
				Visible:    f.Visible,
				OrderIndex: f.OrderIndex,
			})
		}
		if err := svc.Views.SaveFields(c.Context(), viewID, viewFields); err != nil {
			return internalError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/views/:id/fields", func(c *fiber.Ctx) error {
		viewFields, err := svc.Views.ListFields(c.Context(), c.Params("id"))
		if err != nil {
			return internalError(c, err)
		}
		out := make([]apiViewField, 0, len(viewFields))
		for _, f := range viewFields {
			out = append(out, apiViewField{FieldName: f.FieldName, Visible: f.Visible, OrderIndex: f.OrderIndex})
		}
		return c.JSON(fiber.Map{"fields": out})
	})

	api.Put("/views/:id/grid-settings", RequireEditor(), func(c *fiber.Ctx) error {
		var req gridSettingsBody
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		err := svc.Views.SaveGridSettings(c.Context(), models.GridViewSettings{
			ViewID:    c.Params("id"),
			RowHeight: req.RowHeight,
			WrapText:  req.WrapText,
		})
		if err != nil {
			return badRequest(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/views/:id/grid-settings", func(c *fiber.Ctx) error {
		settings, err := svc.Views.GetGridSettings(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return c.JSON(gridSettingsBody{RowHeight: "short"})
			}
			return internalError(c, err)
		}
		return c.JSON(gridSettingsBody{RowHeight: settings.RowHeight, WrapText: settings.WrapText})
	})
}

func registerRecordRoutes(api fiber.Router, svc Services) {
	api.Post("/records/query", func(c *fiber.Ctx) error {
		var req queryRecordsRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		if req.TableID == "" && req.ViewID == "" {
			return badRequest(c, "tableId or viewId is required")
		}
		rows, err := svc.Records.ListRecords(c.Context(), service.ListRecordsInput{
			TableID:          req.TableID,
			ViewID:           req.ViewID,
			PageID:           req.PageID,
			BlockID:          req.BlockID,
			BaseFilters:      toFilterConfigs(req.BaseFilters),
			TemporaryFilters: toFilterConfigs(req.TemporaryFilters),
			QuickFilters:     toFilterConfigs(req.QuickFilters),
			Limit:            req.Limit,
			Offset:           req.Offset,
		})
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "view not found")
			}
			return internalError(c, err)
		}
		out := make([]apiRow, 0, len(rows))
		for _, row := range rows {
			out = append(out, toAPIRow(row))
		}
		return c.JSON(listRecordsResponse{Records: out})
	})

	api.Post("/tables/:id/records", func(c *fiber.Ctx) error {
		var req createRecordRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		row, err := svc.Records.CreateRecord(
			c.Context(),
			c.Params("id"),
			req.Data,
			toFilterConfigs(req.ActiveFilters),
			mutationContext(c, req.Scope),
		)
		if err != nil {
			if errors.Is(err, service.ErrPermissionDenied) {
				return forbidden(c, "record creation is not allowed")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIRow(row))
	})

	api.Get("/records/:id", func(c *fiber.Ctx) error {
		row, err := svc.Records.GetRecord(c.Context(), c.Params("id"), mutationContext(c, mutationScope{}))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "record not found")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIRow(row))
	})

	api.Patch("/records/:id", func(c *fiber.Ctx) error {
		var req updateRecordRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		row, err := svc.Records.UpdateRecord(c.Context(), c.Params("id"), req.Data, mutationContext(c, req.Scope))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrPermissionDenied):
				return forbidden(c, "record editing is not allowed")
			case errors.Is(err, sql.ErrNoRows):
				return notFound(c, "record not found")
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(toAPIRow(row))
	})

	api.Delete("/records/:id", func(c *fiber.Ctx) error {
		var req deleteRecordRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid request body")
			}
		}
		if err := svc.Records.DeleteRecord(c.Context(), c.Params("id"), mutationContext(c, req.Scope)); err != nil {
			switch {
			case errors.Is(err, service.ErrPermissionDenied):
				return forbidden(c, "record deletion is not allowed")
			case errors.Is(err, sql.ErrNoRows):
				return notFound(c, "record not found")
			default:
				return internalError(c, err)
			}
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func registerPageRoutes(api fiber.Router, svc Services) {
	api.Post("/pages", RequireEditor(), func(c *fiber.Ctx) error {
		var req createPageRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		page, err := svc.Pages.CreatePage(c.Context(), req.Name)
		if err != nil {
			if errors.Is(err, service.ErrInvalidPageName) {
				return badRequest(c, "invalid page name")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIPage(page))
	})

	api.Get("/pages", func(c *fiber.Ctx) error {
		pages, err := svc.Pages.ListPages(c.Context())
		if err != nil {
			return internalError(c, err)
		}
		out := make([]apiPage, 0, len(pages))
		for _, page := range pages {
			out = append(out, toAPIPage(page))
		}
		return c.JSON(fiber.Map{"pages": out})
	})

	api.Get("/pages/:id", func(c *fiber.Ctx) error {
		page, err := svc.Pages.GetPage(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "page not found")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIPage(page))
	})

	api.Delete("/pages/:id", RequireEditor(), func(c *fiber.Ctx) error {
		if err := svc.Pages.DeletePage(c.Context(), c.Params("id")); err != nil {
			return internalError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/pages/:id/render", func(c *fiber.Ctx) error {
		rendered, err := svc.Pages.RenderPage(c.Context(), c.Params("id"))
		if err != nil {
			return internalError(c, err)
		}
		out := make([]apiRenderedBlock, 0, len(rendered))
		for _, rb := range rendered {
			out = append(out, toAPIRenderedBlock(rb))
		}
		return c.JSON(fiber.Map{"blocks": out})
	})

	api.Post("/pages/:id/blocks", RequireEditor(), func(c *fiber.Ctx) error {
		var req createBlockRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		b := models.Block{
			PageID: c.Params("id"),
			Type:   req.Type,
			Config: req.Config,
			Sizing: models.BlockSizing(req.Sizing),
		}
		if req.Position != nil {
			b.Position = &models.BlockPosition{X: req.Position.X, Y: req.Position.Y, W: req.Position.W, H: req.Position.H}
		}
		created, err := svc.Pages.AddBlock(c.Context(), b)
		if err != nil {
			if errors.Is(err, service.ErrInvalidBlockType) {
				return badRequest(c, "invalid block type")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIBlock(created))
	})

	api.Get("/pages/:id/blocks", func(c *fiber.Ctx) error {
		blocks, err := svc.Pages.ListBlocks(c.Context(), c.Params("id"))
		if err != nil {
			return internalError(c, err)
		}
		out := make([]apiBlock, 0, len(blocks))
		for _, b := range blocks {
			out = append(out, toAPIBlock(b))
		}
		return c.JSON(fiber.Map{"blocks": out})
	})

	api.Patch("/blocks/:id/config", RequireEditor(), func(c *fiber.Ctx) error {
		var req map[string]any
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		updated, err := svc.Pages.UpdateBlockConfig(c.Context(), c.Params("id"), req)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "block not found")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIBlock(updated))
	})

	api.Patch("/blocks/:id/layout", RequireEditor(), func(c *fiber.Ctx) error {
		var req updateBlockLayoutRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		var position *models.BlockPosition
		if req.Position != nil {
			position = &models.BlockPosition{X: req.Position.X, Y: req.Position.Y, W: req.Position.W, H: req.Position.H}
		}
		updated, err := svc.Pages.UpdateBlockLayout(c.Context(), c.Params("id"), position, models.BlockSizing(req.Sizing))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "block not found")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIBlock(updated))
	})

	api.Delete("/blocks/:id", RequireEditor(), func(c *fiber.Ctx) error {
		if err := svc.Pages.DeleteBlock(c.Context(), c.Params("id")); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "block not found")
			}
			return internalError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Filter blocks publish their selections here; other blocks on the
	// page pick them up on their next query.
	api.Post("/blocks/:id/publish", func(c *fiber.Ctx) error {
		var req publishFilterBlockRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
		changed, err := svc.Pages.PublishFilterBlock(c.Context(), c.Params("id"), toFilterConfigs(req.Filters))
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				return notFound(c, "block not found")
			case errors.Is(err, service.ErrInvalidBlockType):
				return badRequest(c, "block is not a filter block")
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(publishFilterBlockResponse{Changed: changed})
	})
}

func registerAttachmentRoutes(api fiber.Router, svc Services) {
	api.Post("/attachments", func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "file is required")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return internalError(c, err)
		}
		defer file.Close()

		attachment, err := svc.Attachments.Upload(
			c.Context(),
			CurrentUser(c),
			fileHeader.Filename,
			fileHeader.Header.Get("Content-Type"),
			file,
			fileHeader.Size,
		)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInvalidFilename), errors.Is(err, service.ErrEmptyAttachment):
				return badRequest(c, err.Error())
			default:
				return internalError(c, err)
			}
		}
		return c.JSON(toAPIAttachment(attachment))
	})

	api.Get("/attachments/:id", func(c *fiber.Ctx) error {
		attachment, err := svc.Attachments.Get(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "attachment not found")
			}
			return internalError(c, err)
		}
		return c.JSON(toAPIAttachment(attachment))
	})

	api.Get("/attachments/:id/content", func(c *fiber.Ctx) error {
		rangeHeader := strings.TrimSpace(c.Get(fiber.HeaderRange))
		if rangeHeader == "" {
			attachment, reader, err := svc.Attachments.Open(c.Context(), c.Params("id"))
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return notFound(c, "attachment not found")
				}
				return internalError(c, err)
			}
			c.Set(fiber.HeaderAcceptRanges, "bytes")
			c.Set(fiber.HeaderContentType, attachment.Type)
			c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", attachment.Filename))
			return c.SendStream(reader, int(attachment.Size))
		}

		attachment, err := svc.Attachments.Get(c.Context(), c.Params("id"))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "attachment not found")
			}
			return internalError(c, err)
		}
		start, end, ok := parseByteRange(rangeHeader, attachment.Size)
		if !ok {
			c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", attachment.Size))
			return c.SendStatus(fiber.StatusRequestedRangeNotSatisfiable)
		}
		_, reader, err := svc.Attachments.OpenRange(c.Context(), c.Params("id"), start, end)
		if err != nil {
			return internalError(c, err)
		}
		c.Status(fiber.StatusPartialContent)
		c.Set(fiber.HeaderAcceptRanges, "bytes")
		c.Set(fiber.HeaderContentType, attachment.Type)
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, end, attachment.Size))
		return c.SendStream(reader, int(end-start+1))
	})

	api.Delete("/attachments/:id", func(c *fiber.Ctx) error {
		if err := svc.Attachments.Delete(c.Context(), c.Params("id")); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound(c, "attachment not found")
			}
			return internalError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

func mutationContext(c *fiber.Ctx, scope mutationScope) service.MutationContext {
	return service.MutationContext{
		Role:      CurrentUser(c).Role,
		PagePerms: scope.PagePermissions,
		Block:     scope.BlockPermissions,
	}
}
