package task

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/hashlog"
)

// Kinds of Action.
const (
	KindAdd  = "add"
	KindDone = "done"
)

// Action records one change to the set of tasks.
type Action struct {
	Kind string
	Task hashio.Hash // the task as of this action
	Prev hashio.Hash // the task this action supersedes, if any
}

// ActionCodec is the model for Action.
// Task and Prev are references, not children:
// the tasks are stored separately and are not loaded with the action.
var ActionCodec = hashio.NewModel("action", func() *Action { return new(Action) },
	hashio.StringField("kind", func(a *Action) *string { return &a.Kind }),
	hashio.HashField("task", func(a *Action) *hashio.Hash { return &a.Task }),
	hashio.HashField("prev", func(a *Action) *hashio.Hash { return &a.Prev }),
)

// ContentHash implements hashio.Hashable.
func (a *Action) ContentHash() hashio.Hash {
	return ActionCodec.Hash(a)
}

// Journal is a hash-chained log of Actions persisted in a hashio.Store.
// The hash of its head entry is kept in a file
// so the journal can be reopened.
type Journal struct {
	s        *hashio.Store
	tasks    *hashio.Model[*Task]
	log      *hashlog.DefaultLog[*Action]
	headPath string
}

// OpenJournal opens the journal whose head is recorded at headPath.
// If there is no such file the journal starts out empty.
func OpenJournal(s *hashio.Store, tasks *hashio.Model[*Task], headPath string) (*Journal, error) {
	head, err := readHead(headPath)
	if err != nil {
		return nil, err
	}
	log := hashlog.New(
		hashlog.WithHooks[*Action](hashlog.NewStoreHooks[*Action](s, ActionCodec)),
		hashlog.WithHead[*Action](head),
	)
	return &Journal{
		s:        s,
		tasks:    tasks,
		log:      log,
		headPath: headPath,
	}, nil
}

// Add stores t and records its addition.
// It returns the hash of the stored task.
func (j *Journal) Add(ctx context.Context, t *Task) (hashio.Hash, error) {
	h, err := hashio.Put(ctx, j.s, j.tasks, t)
	if err != nil {
		return hashio.None, errors.Wrap(err, "storing task")
	}
	if err = j.push(ctx, &Action{Kind: KindAdd, Task: h}); err != nil {
		return hashio.None, err
	}
	return h, nil
}

// Done marks the task stored under h as done.
// Since tasks are immutable this stores a new task;
// its hash is returned.
func (j *Journal) Done(ctx context.Context, h hashio.Hash) (hashio.Hash, error) {
	t, err := hashio.Get(ctx, j.s, j.tasks, h)
	if err != nil {
		return hashio.None, errors.Wrapf(err, "loading task %s", h)
	}
	if t.Done {
		return h, nil
	}
	t.Done = true

	newHash, err := hashio.Put(ctx, j.s, j.tasks, t)
	if err != nil {
		return hashio.None, errors.Wrap(err, "storing task")
	}
	if err = j.push(ctx, &Action{Kind: KindDone, Task: newHash, Prev: h}); err != nil {
		return hashio.None, err
	}
	return newHash, nil
}

func (j *Journal) push(ctx context.Context, a *Action) error {
	h, err := j.log.Push(ctx, a)
	if err != nil {
		return errors.Wrapf(err, "recording %s action", a.Kind)
	}
	if err := writeHead(j.headPath, h); err != nil {
		return errors.Wrapf(err, "action %s recorded but head file %s not updated", h, j.headPath)
	}
	return nil
}

// Head returns the hash of the most recent action, if any.
func (j *Journal) Head() (hashio.Hash, bool) {
	return j.log.HeadHash()
}

// Actions iterates over the journal's actions, most recent first.
// Check Err afterwards.
func (j *Journal) Actions(ctx context.Context) iter.Seq2[hashio.Hash, *Action] {
	return j.log.All(ctx)
}

// Err reports the error, if any, that ended the last iteration early.
func (j *Journal) Err() error {
	return j.log.Err()
}

// Verify checks the integrity of the journal's chain.
func (j *Journal) Verify(ctx context.Context) error {
	return j.log.Verify(ctx)
}

// Item is a task together with its hash.
type Item struct {
	Hash hashio.Hash
	Task *Task
}

// List returns the current tasks, most recently changed first.
// A task superseded by a later action is omitted.
func (j *Journal) List(ctx context.Context) ([]Item, error) {
	var (
		result     []Item
		superseded = make(map[hashio.Hash]bool)
	)
	for _, a := range j.log.All(ctx) {
		if !a.Prev.IsNone() {
			superseded[a.Prev] = true
		}
		if superseded[a.Task] {
			continue
		}
		superseded[a.Task] = true // listed once

		t, err := hashio.Get(ctx, j.s, j.tasks, a.Task)
		if err != nil {
			return nil, errors.Wrapf(err, "loading task %s", a.Task)
		}
		result = append(result, Item{Hash: a.Task, Task: t})
	}
	if err := j.log.Err(); err != nil {
		return nil, errors.Wrap(err, "reading journal")
	}
	return result, nil
}

func readHead(path string) (hashio.Hash, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return hashio.None, nil
	}
	if err != nil {
		return hashio.None, errors.Wrapf(err, "reading %s", path)
	}
	h, err := hashio.FromHex(strings.TrimSpace(string(data)))
	return h, errors.Wrapf(err, "parsing %s", path)
}

// writeHead replaces the head file the same way the file backend writes records:
// to a temporary sibling, then renamed into place.
func writeHead(path string, h hashio.Hash) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "ensuring dir of %s", path)
	}
	tmp := path + "_"
	if err := os.WriteFile(tmp, []byte(h.String()+"\n"), 0644); err != nil {
		return errors.Wrapf(err, "writing %s", tmp)
	}
	return errors.Wrapf(os.Rename(tmp, path), "renaming %s", tmp)
}
