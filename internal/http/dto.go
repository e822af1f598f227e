package http

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/SophieEDesign/marketinghub/internal/filter"
	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/perm"
	"github.com/SophieEDesign/marketinghub/internal/service"
)

type profileResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type signInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type signInResponse struct {
	User        apiUser `json:"user"`
	AccessToken string  `json:"accessToken"`
}

type createUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Role        string `json:"role"`
}

type apiUser struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Role        string `json:"role"`
	CreateTime  string `json:"createTime,omitempty"`
}

type createTokenRequest struct {
	Description string `json:"description"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

type createTableRequest struct {
	Name string `json:"name"`
}

type apiTable struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreateTime string `json:"createTime"`
}

type createFieldRequest struct {
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Options    apiFieldOptions `json:"options"`
	OrderIndex int             `json:"orderIndex"`
}

type apiFieldOptions struct {
	Choices    []string `json:"choices,omitempty"`
	Expression string   `json:"expression,omitempty"`
	LinkedView string   `json:"linkedView,omitempty"`
}

type apiField struct {
	ID         string          `json:"id"`
	TableID    string          `json:"tableId"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Options    apiFieldOptions `json:"options"`
	OrderIndex int             `json:"orderIndex"`
}

type createViewRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type apiView struct {
	ID         string         `json:"id"`
	TableID    string         `json:"tableId"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Config     map[string]any `json:"config"`
	CreateTime string         `json:"createTime"`
}

// apiFilter is the wire form of one filter condition.
type apiFilter struct {
	ID            string `json:"id,omitempty"`
	FieldName     string `json:"fieldName"`
	Operator      string `json:"operator"`
	Value         any    `json:"value"`
	FilterGroupID string `json:"filterGroupId,omitempty"`
	OrderIndex    int    `json:"orderIndex"`
}

type apiFilterGroup struct {
	ID            string `json:"id,omitempty"`
	ConditionType string `json:"conditionType"`
	OrderIndex    int    `json:"orderIndex"`
}

type saveFiltersRequest struct {
	Groups  []apiFilterGroup `json:"groups"`
	Filters []apiFilter      `json:"filters"`
}

type filtersResponse struct {
	Groups  []apiFilterGroup `json:"groups"`
	Filters []apiFilter      `json:"filters"`
}

type apiSort struct {
	FieldName  string `json:"fieldName"`
	Direction  string `json:"direction"`
	OrderIndex int    `json:"orderIndex"`
}

type apiViewField struct {
	FieldName  string `json:"fieldName"`
	Visible    bool   `json:"visible"`
	OrderIndex int    `json:"orderIndex"`
}

type gridSettingsBody struct {
	RowHeight string `json:"rowHeight"`
	WrapText  bool   `json:"wrapText"`
}

// queryConfig is the flat filter shape clients submit: field, operator,
// value, optional second value for ranges.
type queryConfig struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
	Value2   any    `json:"value2,omitempty"`
}

type queryRecordsRequest struct {
	TableID          string        `json:"tableId"`
	ViewID           string        `json:"viewId"`
	PageID           string        `json:"pageId"`
	BlockID          string        `json:"blockId"`
	BaseFilters      []queryConfig `json:"baseFilters"`
	TemporaryFilters []queryConfig `json:"temporaryFilters"`
	QuickFilters     []queryConfig `json:"quickFilters"`
	Limit            int           `json:"limit"`
	Offset           int           `json:"offset"`
}

type mutationScope struct {
	PagePermissions  *perm.RecordActionPermissions `json:"pagePermissions"`
	BlockPermissions *perm.BlockPermissions        `json:"blockPermissions"`
}

type createRecordRequest struct {
	Data          map[string]any `json:"data"`
	ActiveFilters []queryConfig  `json:"activeFilters"`
	Scope         mutationScope  `json:"scope"`
}

type updateRecordRequest struct {
	Data  map[string]any `json:"data"`
	Scope mutationScope  `json:"scope"`
}

type deleteRecordRequest struct {
	Scope mutationScope `json:"scope"`
}

type apiRow struct {
	ID         string         `json:"id"`
	TableID    string         `json:"tableId"`
	Data       map[string]any `json:"data"`
	CreateTime string         `json:"createTime"`
	UpdateTime string         `json:"updateTime"`
}

type listRecordsResponse struct {
	Records []apiRow `json:"records"`
}

type createPageRequest struct {
	Name string `json:"name"`
}

type apiPage struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Config     map[string]any `json:"config"`
	CreateTime string         `json:"createTime"`
}

type apiPosition struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type createBlockRequest struct {
	Type     string         `json:"type"`
	Config   map[string]any `json:"config"`
	Position *apiPosition   `json:"position"`
	Sizing   string         `json:"sizing"`
}

type updateBlockLayoutRequest struct {
	Position *apiPosition `json:"position"`
	Sizing   string       `json:"sizing"`
}

type apiBlock struct {
	ID       string         `json:"id"`
	PageID   string         `json:"pageId"`
	Type     string         `json:"type"`
	Config   map[string]any `json:"config"`
	Position *apiPosition   `json:"position,omitempty"`
	Sizing   string         `json:"sizing"`
}

type apiRenderedBlock struct {
	apiBlock
	HTML string `json:"html,omitempty"`
}

type publishFilterBlockRequest struct {
	Filters []queryConfig `json:"filters"`
}

type publishFilterBlockResponse struct {
	Changed bool `json:"changed"`
}

type apiAttachment struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	CreateTime string `json:"createTime"`
}

func toAPIUser(user models.User) apiUser {
	return apiUser{
		ID:          user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		CreateTime:  formatTime(user.CreateTime),
	}
}

func toAPITable(table models.Table) apiTable {
	return apiTable{
		ID:         table.ID,
		Name:       table.Name,
		CreateTime: formatTime(table.CreateTime),
	}
}

func toAPIField(field models.Field) apiField {
	return apiField{
		ID:      field.ID,
		TableID: field.TableID,
		Name:    field.Name,
		Type:    string(field.Type),
		Options: apiFieldOptions{
			Choices:    field.Options.Choices,
			Expression: field.Options.Expression,
			LinkedView: field.Options.LinkedView,
		},
		OrderIndex: field.OrderIndex,
	}
}

func toAPIView(view models.View) apiView {
	return apiView{
		ID:         view.ID,
		TableID:    view.TableID,
		Name:       view.Name,
		Type:       string(view.Type),
		Config:     view.Config,
		CreateTime: formatTime(view.CreateTime),
	}
}

func toAPIRow(row models.Row) apiRow {
	return apiRow{
		ID:         row.ID,
		TableID:    row.TableID,
		Data:       row.Data,
		CreateTime: formatTime(row.CreateTime),
		UpdateTime: formatTime(row.UpdateTime),
	}
}

func toAPIPage(page models.Page) apiPage {
	return apiPage{
		ID:         page.ID,
		Name:       page.Name,
		Config:     page.Config,
		CreateTime: formatTime(page.CreateTime),
	}
}

func toAPIBlock(b models.Block) apiBlock {
	out := apiBlock{
		ID:     b.ID,
		PageID: b.PageID,
		Type:   b.Type,
		Config: b.Config,
		Sizing: string(b.Sizing),
	}
	if b.Position != nil {
		out.Position = &apiPosition{X: b.Position.X, Y: b.Position.Y, W: b.Position.W, H: b.Position.H}
	}
	return out
}

func toAPIRenderedBlock(rb service.RenderedBlock) apiRenderedBlock {
	return apiRenderedBlock{
		apiBlock: toAPIBlock(rb.Block),
		HTML:     rb.HTML,
	}
}

func toAPIAttachment(attachment models.Attachment) apiAttachment {
	return apiAttachment{
		ID:         attachment.ID,
		Filename:   attachment.Filename,
		Type:       attachment.Type,
		Size:       attachment.Size,
		CreateTime: formatTime(attachment.CreateTime),
	}
}

func toFilterConfigs(configs []queryConfig) []filter.Config {
	out := make([]filter.Config, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, filter.Config{
			Field:    cfg.Field,
			Operator: filter.Operator(cfg.Operator),
			Value:    cfg.Value,
			Value2:   cfg.Value2,
		})
	}
	return out
}

func toModelFilters(viewID string, filters []apiFilter) []models.ViewFilter {
	out := make([]models.ViewFilter, 0, len(filters))
	for _, f := range filters {
		mf := models.ViewFilter{
			ID:         f.ID,
			ViewID:     viewID,
			FieldName:  f.FieldName,
			Operator:   f.Operator,
			Value:      f.Value,
			OrderIndex: f.OrderIndex,
		}
		if strings.TrimSpace(f.FilterGroupID) != "" {
			groupID := f.FilterGroupID
			mf.FilterGroupID = &groupID
		}
		out = append(out, mf)
	}
	return out
}

func toModelGroups(viewID string, groups []apiFilterGroup) []models.ViewFilterGroup {
	out := make([]models.ViewFilterGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.ViewFilterGroup{
			ID:            g.ID,
			ViewID:        viewID,
			ConditionType: models.ConditionType(g.ConditionType),
			OrderIndex:    g.OrderIndex,
		})
	}
	return out
}

func toAPIFilters(filters []models.ViewFilter) []apiFilter {
	out := make([]apiFilter, 0, len(filters))
	for _, f := range filters {
		af := apiFilter{
			ID:         f.ID,
			FieldName:  f.FieldName,
			Operator:   f.Operator,
			Value:      f.Value,
			OrderIndex: f.OrderIndex,
		}
		if f.FilterGroupID != nil {
			af.FilterGroupID = *f.FilterGroupID
		}
		out = append(out, af)
	}
	return out
}

func toAPIGroups(groups []models.ViewFilterGroup) []apiFilterGroup {
	out := make([]apiFilterGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, apiFilterGroup{
			ID:            g.ID,
			ConditionType: string(g.ConditionType),
			OrderIndex:    g.OrderIndex,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseID(raw string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
}

// parseByteRange resolves a single "bytes=start-end" header against the
// payload size, returning inclusive bounds. Multi-range requests and
// out-of-bounds starts are rejected.
func parseByteRange(header string, size int64) (int64, int64, bool) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, false
	}
	startRaw, endRaw, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, false
	}
	startRaw = strings.TrimSpace(startRaw)
	endRaw = strings.TrimSpace(endRaw)

	if startRaw == "" {
		// Suffix form: the last N bytes.
		n, err := strconv.ParseInt(endRaw, 10, 64)
		if err != nil || n <= 0 || size == 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}

	start, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}
	end := size - 1
	if endRaw != "" {
		end, err = strconv.ParseInt(endRaw, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return start, end, true
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": message,
	})
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"message": message,
	})
}

func forbidden(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"message": message,
	})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": err.Error(),
	})
}
