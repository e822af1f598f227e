package filter

import (
	"encoding/json"
	"sync"
)

// BlockState is the filter emission of one filter block on a page.
// TargetAll broadcasts to every block on the page, gated by table
// compatibility when both sides declare a table id.
type BlockState struct {
	BlockID      string
	Title        string
	Filters      []Config
	Tree         Node
	TargetBlocks []string
	TargetAll    bool
	TableID      string

	signature string
}

// Broadcast is the page-scoped registry filter blocks publish into and
// consuming blocks read from. Updates carrying an unchanged payload are
// suppressed by signature comparison so an emitter re-publishing its own
// state cannot ping-pong with its consumers.
type Broadcast struct {
	mu    sync.Mutex
	pages map[string]*pageRegistry
}

type pageRegistry struct {
	states map[string]*BlockState
	order  []string
}

func NewBroadcast() *Broadcast {
	return &Broadcast{pages: make(map[string]*pageRegistry)}
}

// Update registers or refreshes a filter block's emission. It returns
// false (and leaves the stored state untouched) when the payload is
// identical to what is already registered.
func (b *Broadcast) Update(pageID string, state BlockState) bool {
	state.signature = blockStateSignature(state)

	b.mu.Lock()
	defer b.mu.Unlock()

	page, ok := b.pages[pageID]
	if !ok {
		page = &pageRegistry{states: make(map[string]*BlockState)}
		b.pages[pageID] = page
	}
	if existing, ok := page.states[state.BlockID]; ok {
		if existing.signature == state.signature {
			return false
		}
		*existing = state
		return true
	}
	stored := state
	page.states[state.BlockID] = &stored
	page.order = append(page.order, state.BlockID)
	return true
}

// Remove drops one emitter, e.g. when its block is deleted.
func (b *Broadcast) Remove(pageID string, blockID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	page, ok := b.pages[pageID]
	if !ok {
		return
	}
	if _, ok := page.states[blockID]; !ok {
		return
	}
	delete(page.states, blockID)
	order := page.order[:0]
	for _, id := range page.order {
		if id != blockID {
			order = append(order, id)
		}
	}
	page.order = order
}

// DropPage tears down the whole registry for a page.
func (b *Broadcast) DropPage(pageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pages, pageID)
}

// State returns the registered emission of one block, if any.
func (b *Broadcast) State(pageID string, blockID string) (BlockState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	page, ok := b.pages[pageID]
	if !ok {
		return BlockState{}, false
	}
	state, ok := page.states[blockID]
	if !ok {
		return BlockState{}, false
	}
	return *state, true
}

// FiltersFor returns the flat filters targeting a block, in emitter
// registration order. When several emitters constrain the same field the
// last registered one wins. Emitters carrying a structured tree are
// consumed whole through TreeFor instead and are skipped here.
func (b *Broadcast) FiltersFor(pageID string, blockID string, blockTableID string) []Config {
	states := b.matching(pageID, blockID, blockTableID)
	byField := make(map[string]int)
	merged := make([]Config, 0)
	for _, state := range states {
		if !IsEmpty(state.Tree) {
			continue
		}
		for _, f := range state.Filters {
			if idx, ok := byField[f.Field]; ok {
				merged[idx] = f
				continue
			}
			byField[f.Field] = len(merged)
			merged = append(merged, f)
		}
	}
	return merged
}

// TreeFor AND-combines the structured trees of every emitter targeting
// the block. Unlike FiltersFor there is no per-field override at the
// tree level; all qualifying trees narrow together. Flat emitters are
// the domain of FiltersFor and contribute nothing here.
func (b *Broadcast) TreeFor(pageID string, blockID string, blockTableID string) Node {
	states := b.matching(pageID, blockID, blockTableID)
	trees := make([]Node, 0, len(states))
	for _, state := range states {
		if IsEmpty(state.Tree) {
			continue
		}
		trees = append(trees, state.Tree)
	}
	return And(trees)
}

func (b *Broadcast) matching(pageID string, blockID string, blockTableID string) []BlockState {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, ok := b.pages[pageID]
	if !ok {
		return nil
	}
	out := make([]BlockState, 0, len(page.order))
	for _, id := range page.order {
		state := page.states[id]
		if state.BlockID == blockID {
			continue
		}
		if state.TargetAll {
			if blockTableID != "" && state.TableID != "" && state.TableID != blockTableID {
				continue
			}
			out = append(out, *state)
			continue
		}
		for _, target := range state.TargetBlocks {
			if target == blockID {
				out = append(out, *state)
				break
			}
		}
	}
	return out
}

func blockStateSignature(state BlockState) string {
	payload := struct {
		BlockID      string   `json:"blockId"`
		Title        string   `json:"title"`
		Filters      []Config `json:"filters"`
		Tree         any      `json:"tree"`
		TargetBlocks []string `json:"targetBlocks"`
		TargetAll    bool     `json:"targetAll"`
		TableID      string   `json:"tableId"`
	}{
		BlockID:      state.BlockID,
		Title:        state.Title,
		Filters:      state.Filters,
		Tree:         nodeSignature(state.Tree),
		TargetBlocks: state.TargetBlocks,
		TargetAll:    state.TargetAll,
		TableID:      state.TableID,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	return string(data)
}

func nodeSignature(n Node) any {
	switch v := n.(type) {
	case Leaf:
		return map[string]any{
			"field":    v.Field,
			"operator": v.Operator,
			"value":    v.Value,
			"value2":   v.Value2,
		}
	case Group:
		children := make([]any, 0, len(v.Children))
		for _, child := range v.Children {
			children = append(children, nodeSignature(child))
		}
		return map[string]any{
			"conditionType": v.ConditionType,
			"children":      children,
		}
	default:
		return nil
	}
}
