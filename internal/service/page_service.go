package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/SophieEDesign/marketinghub/internal/block"
	"github.com/SophieEDesign/marketinghub/internal/filter"
	"github.com/SophieEDesign/marketinghub/internal/models"
	"github.com/SophieEDesign/marketinghub/internal/perm"
	"github.com/SophieEDesign/marketinghub/internal/richtext"
	"github.com/SophieEDesign/marketinghub/internal/store"
)

type PageService struct {
	store     *store.SQLStore
	broadcast *filter.Broadcast
	richtext  *richtext.Service
}

var (
	ErrInvalidPageName  = errors.New("invalid page name")
	ErrInvalidBlockType = errors.New("invalid block type")
)

func NewPageService(s *store.SQLStore, b *filter.Broadcast, rt *richtext.Service) *PageService {
	return &PageService{store: s, broadcast: b, richtext: rt}
}

func (s *PageService) CreatePage(ctx context.Context, name string) (models.Page, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > 128 {
		return models.Page{}, ErrInvalidPageName
	}
	return s.store.CreatePage(ctx, name)
}

func (s *PageService) GetPage(ctx context.Context, id string) (models.Page, error) {
	return s.store.GetPageByID(ctx, id)
}

func (s *PageService) ListPages(ctx context.Context) ([]models.Page, error) {
	return s.store.ListPages(ctx)
}

func (s *PageService) UpdatePageConfig(ctx context.Context, id string, config map[string]any) error {
	return s.store.UpdatePageConfig(ctx, id, config)
}

// DeletePage tears down the page's broadcast registry with it so no
// stale filter emissions survive the page.
func (s *PageService) DeletePage(ctx context.Context, id string) error {
	if err := s.store.DeletePage(ctx, id); err != nil {
		return err
	}
	s.broadcast.DropPage(id)
	return nil
}

// AddBlock normalizes the submitted config and collapses the sizing
// request before persisting.
func (s *PageService) AddBlock(ctx context.Context, b models.Block) (models.Block, error) {
	blockType := block.Type(b.Type)
	if !blockType.IsValid() {
		return models.Block{}, ErrInvalidBlockType
	}
	b.Config = block.NormalizeConfig(blockType, b.Config)
	b.Sizing = block.EffectiveSizing(blockType, b.Sizing)

	created, err := s.store.CreateBlock(ctx, b)
	if err != nil {
		return models.Block{}, err
	}
	if blockType == block.TypeFilter {
		s.publishFilterBlock(created)
	}
	return created, nil
}

func (s *PageService) GetBlock(ctx context.Context, id string) (models.Block, error) {
	return s.store.GetBlockByID(ctx, id)
}

func (s *PageService) ListBlocks(ctx context.Context, pageID string) ([]models.Block, error) {
	return s.store.ListBlocks(ctx, pageID)
}

func (s *PageService) UpdateBlockConfig(ctx context.Context, id string, config map[string]any) (models.Block, error) {
	existing, err := s.store.GetBlockByID(ctx, id)
	if err != nil {
		return models.Block{}, err
	}
	blockType := block.Type(existing.Type)
	config = block.NormalizeConfig(blockType, config)
	if err := s.store.UpdateBlockConfig(ctx, id, config); err != nil {
		return models.Block{}, err
	}
	updated, err := s.store.GetBlockByID(ctx, id)
	if err != nil {
		return models.Block{}, err
	}
	if blockType == block.TypeFilter {
		s.publishFilterBlock(updated)
	}
	return updated, nil
}

func (s *PageService) UpdateBlockLayout(ctx context.Context, id string, position *models.BlockPosition, sizing models.BlockSizing) (models.Block, error) {
	existing, err := s.store.GetBlockByID(ctx, id)
	if err != nil {
		return models.Block{}, err
	}
	sizing = block.EffectiveSizing(block.Type(existing.Type), sizing)
	if err := s.store.UpdateBlockLayout(ctx, id, position, sizing); err != nil {
		return models.Block{}, err
	}
	return s.store.GetBlockByID(ctx, id)
}

// DeleteBlock also withdraws the block's filter emission, if any.
func (s *PageService) DeleteBlock(ctx context.Context, id string) error {
	existing, err := s.store.GetBlockByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBlock(ctx, id); err != nil {
		return err
	}
	s.broadcast.Remove(existing.PageID, existing.ID)
	return nil
}

// PublishFilterBlock re-emits a filter block's current state into the
// page registry, e.g. after the user changes its selections. It reports
// whether the emission actually changed.
func (s *PageService) PublishFilterBlock(ctx context.Context, blockID string, filters []filter.Config) (bool, error) {
	b, err := s.store.GetBlockByID(ctx, blockID)
	if err != nil {
		return false, err
	}
	if block.Type(b.Type) != block.TypeFilter {
		return false, ErrInvalidBlockType
	}
	state := blockStateFromConfig(b)
	if filters != nil {
		state.Filters = filters
		state.Tree = nil
		if emitsOrTree(b.Config) {
			state.Tree = filter.ConfigsToTree(filters, models.ConditionOr)
		}
	}
	return s.broadcast.Update(b.PageID, state), nil
}

func (s *PageService) publishFilterBlock(b models.Block) {
	s.broadcast.Update(b.PageID, blockStateFromConfig(b))
}

// blockStateFromConfig decodes a filter block's persisted config into
// its broadcast emission. target_blocks is either the string "all" or a
// list of block ids.
func blockStateFromConfig(b models.Block) filter.BlockState {
	state := filter.BlockState{BlockID: b.ID}
	if title, ok := b.Config["title"].(string); ok {
		state.Title = title
	}
	if tableID, ok := b.Config["table_id"].(string); ok {
		state.TableID = tableID
	}
	switch targets := b.Config["target_blocks"].(type) {
	case string:
		state.TargetAll = strings.EqualFold(strings.TrimSpace(targets), "all")
	case []any:
		for _, t := range targets {
			if id, ok := t.(string); ok {
				state.TargetBlocks = append(state.TargetBlocks, id)
			}
		}
	case []string:
		state.TargetBlocks = targets
	}
	state.Filters = decodeConfigFilters(b.Config["filters"])
	// Flat emissions collapse per field at the consumer; only an OR
	// emission needs its structure preserved as a tree.
	if emitsOrTree(b.Config) {
		state.Tree = filter.ConfigsToTree(state.Filters, models.ConditionOr)
	}
	return state
}

func emitsOrTree(config map[string]any) bool {
	ct, _ := config["condition_type"].(string)
	return strings.EqualFold(strings.TrimSpace(ct), string(models.ConditionOr))
}

func decodeConfigFilters(raw any) []filter.Config {
	if raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var configs []filter.Config
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil
	}
	return configs
}

// RenderedBlock is a block prepared for display: effective sizing
// resolved and, for text blocks, markdown content rendered to HTML.
type RenderedBlock struct {
	Block models.Block
	HTML  string
}

// RenderPage resolves every block on a page for display. Permission
// flags are resolved per block from its config so the caller can gate
// record actions without re-reading configs.
func (s *PageService) RenderPage(ctx context.Context, pageID string) ([]RenderedBlock, error) {
	blocks, err := s.store.ListBlocks(ctx, pageID)
	if err != nil {
		return nil, err
	}
	rendered := make([]RenderedBlock, 0, len(blocks))
	for _, b := range blocks {
		blockType := block.Type(b.Type)
		b.Config = block.NormalizeConfig(blockType, b.Config)
		b.Sizing = block.EffectiveSizing(blockType, b.Sizing)

		rb := RenderedBlock{Block: b}
		if blockType == block.TypeText {
			if content, ok := b.Config["content_json"].(string); ok {
				html, err := s.richtext.Render(content)
				if err == nil {
					rb.HTML = html
				}
			}
		}
		rendered = append(rendered, rb)
	}
	return rendered, nil
}

// BlockPermissionsFromConfig decodes the optional permissions section of
// a block config; absent or malformed sections fall back to defaults.
func BlockPermissionsFromConfig(config map[string]any) *perm.BlockPermissions {
	raw, ok := config["permissions"]
	if !ok {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	perms := perm.DefaultBlockPermissions()
	if err := json.Unmarshal(data, &perms); err != nil {
		return nil
	}
	return &perms
}
