package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/bobg/hashio"
)

func (c maincmd) put(ctx context.Context, fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return errors.Wrap(err, "reading stdin")
	}
	h, added, err := c.s.Backend().Put(ctx, data)
	if err != nil {
		return errors.Wrap(err, "storing record")
	}
	if added {
		fmt.Printf("%s\n", h)
	} else {
		fmt.Printf("%s (already present)\n", h)
	}
	return nil
}

func (c maincmd) get(ctx context.Context, fs *flag.FlagSet, args []string) error {
	hashstr := fs.String("hash", "", "hash of record to get")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	h, err := parseHash(*hashstr)
	if err != nil {
		return err
	}
	data, err := c.s.GetRaw(ctx, h)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return errors.Wrap(err, "writing record to stdout")
}

func (c maincmd) fsck(ctx context.Context, fs *flag.FlagSet, args []string) error {
	concurrency := fs.Int("j", 8, "records to check at once")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "parsing args")
	}

	var bad int
	err := hashio.Verify(ctx, c.s.Backend(), *concurrency, func(h hashio.Hash, err error) error {
		bad++
		fmt.Printf("%s: %s\n", h, err)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "verifying store")
	}

	j, err := c.journal()
	if err != nil {
		bad++
		fmt.Printf("journal: %s\n", err)
	} else if err := j.Verify(ctx); err != nil {
		bad++
		fmt.Printf("journal: %s\n", err)
	}

	if bad > 0 {
		return errors.Errorf("%d problem(s) found", bad)
	}
	return nil
}

func parseHash(s string) (hashio.Hash, error) {
	if s == "" {
		return hashio.None, errors.New("missing -hash")
	}
	h, err := hashio.FromHex(s)
	return h, errors.Wrapf(err, "parsing hash %s", s)
}
