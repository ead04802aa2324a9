// Package task is a small task tracker built on hashio.
//
// Tasks are immutable records in a hashio.Store.
// Every change is recorded as an Action in a hash-chained Journal.
package task

import (
	"github.com/bobg/hashio"
	"github.com/bobg/hashio/legacy"
)

// Task is one work item.
type Task struct {
	Title   string
	Body    string
	Done    bool
	Created int64 // Unix seconds
	Tags    []string
}

var tagsCodec = hashio.SliceCodec(hashio.String)

// NewCodec produces the model for Task.
// Records written under the earlier TaskV0 schema are migrated on read,
// as are version-1 records in ls when ls is not nil.
func NewCodec(ls *legacy.Store) *hashio.Model[*Task] {
	m := hashio.NewModel("task", func() *Task { return new(Task) },
		hashio.StringField("title", func(t *Task) *string { return &t.Title }),
		hashio.StringField("body", func(t *Task) *string { return &t.Body }),
		hashio.BoolField("done", func(t *Task) *bool { return &t.Done }),
		hashio.I64Field("created", func(t *Task) *int64 { return &t.Created }),
		hashio.ChildField("tags", tagsCodec, func(t *Task) *[]string { return &t.Tags }),
	)

	migrations := []hashio.Migration[*Task]{
		hashio.Convert[*TaskV0, *Task](TaskV0Codec, fromV0),
	}
	if ls != nil {
		migrations = append(migrations, legacy.Migrate[*taskV1, *Task](ls, taskV1Codec, fromV1))
	}
	return m.WithMigrations(migrations...)
}

// TaskV0 is the shape of a task before it had a completion flag,
// a creation time, or tags.
type TaskV0 struct {
	Title string
	Body  string
}

// TaskV0Codec is the model for TaskV0.
var TaskV0Codec = hashio.NewModel("taskV0", func() *TaskV0 { return new(TaskV0) },
	hashio.StringField("title", func(t *TaskV0) *string { return &t.Title }),
	hashio.StringField("body", func(t *TaskV0) *string { return &t.Body }),
)

func fromV0(old *TaskV0) *Task {
	return &Task{Title: old.Title, Body: old.Body}
}

// taskV1 is a task as stored by the version-1 store.
type taskV1 struct {
	Title string
}

var taskV1Codec = legacy.NewModel("taskV1", func() *taskV1 { return new(taskV1) },
	legacy.StringField("title", func(t *taskV1) *string { return &t.Title }),
)

func fromV1(old *taskV1) *Task {
	return &Task{Title: old.Title}
}
