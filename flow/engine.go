// Package flow walks a form block by block, applying the conditional logic
// attached to answered questions.
package flow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mbolis/leadform/model"
)

var (
	ErrFinished = errors.New("flow: form already finished")
	ErrRequired = errors.New("flow: answer required")
	ErrCycle    = errors.New("flow: answers loop back to a visited question")
)

// State is a position in the form. It is a plain value so clients can carry
// it between navigation requests.
type State struct {
	Block    int      `json:"block"`
	Question int      `json:"question"`
	Hidden   []string `json:"hidden,omitempty"`
	Done     bool     `json:"done"`
}

func (s State) hidden(blockID string) bool {
	for _, id := range s.Hidden {
		if id == blockID {
			return true
		}
	}
	return false
}

func (s State) withHidden(blockID string, hide bool) State {
	hidden := make([]string, 0, len(s.Hidden)+1)
	for _, id := range s.Hidden {
		if id != blockID {
			hidden = append(hidden, id)
		}
	}
	if hide {
		hidden = append(hidden, blockID)
		sort.Strings(hidden)
	}
	if len(hidden) == 0 {
		hidden = nil
	}
	s.Hidden = hidden
	return s
}

func (s State) key() string {
	return fmt.Sprintf("%d/%d/%s", s.Block, s.Question, strings.Join(s.Hidden, ","))
}

type Engine struct {
	blocks []model.Block
	index  map[string]int
	pages  [][]model.Question
}

// New prepares form for navigation. Questions pointing at a block that does
// not exist are unreachable. A form without blocks is one implicit page.
func New(form model.Form) *Engine {
	blocks := form.Blocks
	implicit := len(blocks) == 0
	if implicit {
		blocks = []model.Block{{}}
	}

	e := &Engine{
		blocks: blocks,
		index:  make(map[string]int, len(blocks)),
		pages:  make([][]model.Question, len(blocks)),
	}
	for i, b := range blocks {
		if _, dup := e.index[b.ID]; !dup {
			e.index[b.ID] = i
		}
	}
	for _, q := range form.Questions {
		if implicit {
			e.pages[0] = append(e.pages[0], q)
			continue
		}
		if i, ok := e.index[q.BlockID]; ok {
			e.pages[i] = append(e.pages[i], q)
		}
	}
	return e
}

// Start returns the first position. Blocks that some rule can show begin hidden.
func (e *Engine) Start() State {
	s := State{}
	for _, page := range e.pages {
		for _, q := range page {
			for _, r := range q.ConditionalLogic {
				if _, ok := e.index[r.TargetBlockID]; ok && r.Action == model.ActionShow {
					s = s.withHidden(r.TargetBlockID, true)
				}
			}
		}
	}
	return e.enter(s, 0)
}

// Current returns the question waiting for an answer at s.
func (e *Engine) Current(s State) (model.Question, bool) {
	if s.Done || s.Block < 0 || s.Block >= len(e.pages) {
		return model.Question{}, false
	}
	page := e.pages[s.Block]
	if s.Question < 0 || s.Question >= len(page) {
		return model.Question{}, false
	}
	return page[s.Question], true
}

// BlockAt returns the block shown at s.
func (e *Engine) BlockAt(s State) (model.Block, bool) {
	if s.Done || s.Block < 0 || s.Block >= len(e.blocks) {
		return model.Block{}, false
	}
	return e.blocks[s.Block], true
}

// Answer records answer for the current question and returns the next state.
func (e *Engine) Answer(s State, answer any) (State, error) {
	q, ok := e.Current(s)
	if !ok {
		return s, ErrFinished
	}
	if q.Required && len(model.AnswerValues(answer)) == 0 {
		return s, ErrRequired
	}
	return e.step(s, q, answer), nil
}

// Walk replays answers from the start and returns the ids of the questions
// visited, in order. Required answers are not checked here.
func (e *Engine) Walk(answers map[string]any) ([]string, error) {
	var path []string
	seen := map[string]bool{}

	s := e.Start()
	for !s.Done {
		if seen[s.key()] {
			return path, ErrCycle
		}
		seen[s.key()] = true

		q, ok := e.Current(s)
		if !ok {
			break
		}
		path = append(path, q.ID)
		s = e.step(s, q, answers[q.ID])
	}
	return path, nil
}

func (e *Engine) step(s State, q model.Question, answer any) State {
	values := model.AnswerValues(answer)

	jump := -1
	for _, r := range q.ConditionalLogic {
		if !contains(values, r.Option) {
			continue
		}
		target, ok := e.index[r.TargetBlockID]
		if !ok {
			continue
		}
		switch r.Action {
		case model.ActionShow:
			s = s.withHidden(r.TargetBlockID, false)
		case model.ActionHide:
			s = s.withHidden(r.TargetBlockID, true)
		case model.ActionJump:
			if jump < 0 {
				jump = target
			}
		}
	}

	if jump >= 0 {
		s = s.withHidden(e.blocks[jump].ID, false)
		return e.enter(s, jump)
	}

	// the current block stays on screen even if a rule just hid it
	if s.Question+1 < len(e.pages[s.Block]) {
		s.Question++
		return s
	}
	return e.enter(s, s.Block+1)
}

// enter moves to the first question of the first visible, non-empty block at
// or after block.
func (e *Engine) enter(s State, block int) State {
	for ; block < len(e.blocks); block++ {
		if len(e.pages[block]) > 0 && !s.hidden(e.blocks[block].ID) {
			s.Block, s.Question, s.Done = block, 0, false
			return s
		}
	}
	s.Block, s.Question, s.Done = len(e.blocks), 0, true
	return s
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
