/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package snapshot_test

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/acronis/go-botkit/snapshot"
)

func Example() {
	dir, err := os.MkdirTemp("", "snapshots-*")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	store, err := snapshot.NewFileStore(dir)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = store.Close() }()

	fetchedAt := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	if err = store.Save("currency", []byte(`{"rates":{"EUR":1.08}}`), fetchedAt); err != nil {
		log.Fatal(err)
	}

	data, at, err := store.Load("currency")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s fetched at %s\n", data, at.Format(time.RFC3339))

	status, err := store.Status()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("entries: %d\n", status.Entries)

	// Output:
	// {"rates":{"EUR":1.08}} fetched at 2025-03-01T12:00:00Z
	// entries: 1
}
