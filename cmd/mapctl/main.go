// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command mapctl curates AniDB to MyAnimeList mappings through the anisync API.
//
// Settings come from ~/.config/anisync/mapctl.ini ([server] base_url, token,
// per_page) and the ANISYNC_API_URL, ANISYNC_TOKEN and ANISYNC_PER_PAGE
// environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCommand(defaultStreams())
	if err := cmd.ExecuteContext(ctx); err != nil {
		var shown reportedError
		if !errors.Is(err, context.Canceled) && !errors.As(err, &shown) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}
