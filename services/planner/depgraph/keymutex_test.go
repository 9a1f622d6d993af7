// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestKeyMutex_BlocksSameKey verifies a second locker on the same key
// waits for the first release.
func TestKeyMutex_BlocksSameKey(t *testing.T) {
	km := newKeyMutex()
	release := km.Lock("alpha")

	acquired := make(chan struct{})
	go func() {
		innerRelease := km.Lock("alpha")
		close(acquired)
		innerRelease()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first was held")
	case <-time.After(50 * time.Millisecond):
	}

	release()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second lock never acquired after release")
	}
}

// TestKeyMutex_IndependentKeys verifies different keys do not contend.
func TestKeyMutex_IndependentKeys(t *testing.T) {
	km := newKeyMutex()
	releaseAlpha := km.Lock("alpha")
	defer releaseAlpha()

	acquired := make(chan struct{})
	go func() {
		releaseBravo := km.Lock("bravo")
		close(acquired)
		releaseBravo()
	}()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("independent key blocked")
	}
}

// TestKeyMutex_Cleanup verifies released keys leave no map entries
// behind.
func TestKeyMutex_Cleanup(t *testing.T) {
	km := newKeyMutex()

	releaseAlpha := km.Lock("alpha")
	releaseBravo := km.Lock("bravo")
	releaseAlpha()
	releaseBravo()

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}

// TestKeyMutex_ConcurrentCounter verifies mutual exclusion under real
// contention: unsynchronized increments under one key must not race.
func TestKeyMutex_ConcurrentCounter(t *testing.T) {
	km := newKeyMutex()
	const workers = 32
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := km.Lock("shared")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, workers, counter)

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.locks)
}
