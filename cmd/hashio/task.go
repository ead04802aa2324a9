package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/task"
)

func (c maincmd) add(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var (
		title = fs.String("title", "", "task title")
		body  = fs.String("body", "", "task description")
		tags  = fs.String("tags", "", "comma-separated tags")
	)
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	if *title == "" {
		return errors.New("missing -title")
	}

	j, err := c.journal()
	if err != nil {
		return err
	}

	t := &task.Task{
		Title:   *title,
		Body:    *body,
		Created: time.Now().Unix(),
	}
	if *tags != "" {
		t.Tags = strings.Split(*tags, ",")
	}

	h, err := j.Add(ctx, t)
	if err != nil {
		return errors.Wrap(err, "adding task")
	}
	fmt.Printf("%s\n", h)
	return nil
}

func (c maincmd) done(ctx context.Context, fs *flag.FlagSet, args []string) error {
	hashstr := fs.String("hash", "", "hash of task to mark done")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	h, err := parseHash(*hashstr)
	if err != nil {
		return err
	}

	j, err := c.journal()
	if err != nil {
		return err
	}
	newHash, err := j.Done(ctx, h)
	if err != nil {
		return errors.Wrapf(err, "marking %s done", h)
	}
	fmt.Printf("%s\n", newHash)
	return nil
}

func (c maincmd) show(ctx context.Context, fs *flag.FlagSet, args []string) error {
	hashstr := fs.String("hash", "", "hash of task to show")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}
	h, err := parseHash(*hashstr)
	if err != nil {
		return err
	}

	t, err := hashio.Get(ctx, c.s, c.tasks(), h)
	if err != nil {
		return errors.Wrapf(err, "loading task %s", h)
	}

	fmt.Printf("Title:   %s\n", t.Title)
	fmt.Printf("Done:    %v\n", t.Done)
	if t.Created != 0 {
		fmt.Printf("Created: %s\n", time.Unix(t.Created, 0).Format(time.RFC3339))
	}
	if len(t.Tags) > 0 {
		fmt.Printf("Tags:    %s\n", strings.Join(t.Tags, ", "))
	}
	if t.Body != "" {
		fmt.Printf("\n%s\n", t.Body)
	}
	return nil
}

func (c maincmd) list(ctx context.Context, fs *flag.FlagSet, args []string) error {
	all := fs.Bool("all", false, "include tasks that are done")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	j, err := c.journal()
	if err != nil {
		return err
	}
	items, err := j.List(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Task.Done && !*all {
			continue
		}
		mark := " "
		if item.Task.Done {
			mark = "x"
		}
		fmt.Printf("[%s] %s %s\n", mark, item.Hash.String()[:12], item.Task.Title)
	}
	return nil
}

func (c maincmd) log(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	j, err := c.journal()
	if err != nil {
		return err
	}
	for h, a := range j.Actions(ctx) {
		fmt.Printf("%s %-4s %s\n", h, a.Kind, a.Task)
	}
	return j.Err()
}
