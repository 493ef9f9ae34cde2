//go:build windows

// SPDX-License-Identifier: GPL-3.0-or-later

package cluster

import (
	"fmt"
	"sync"

	"github.com/corenetio/corenet"
)

var warnOnce sync.Once

func (c *Cluster) warnUnsupported() {
	warnOnce.Do(func() {
		c.Logger.Warn("cluster: process forking is unavailable on windows, clustering is disabled; server functionality still runs single-process")
	})
}

// Start always fails on Windows: there is no fork/exec-based worker
// model to start. Server functionality is unaffected; only clustering
// is disabled.
func (c *Cluster) Start(sid corenet.SchemeID) error {
	c.warnUnsupported()
	return fmt.Errorf("cluster: unsupported on windows")
}

// Stop is a no-op on Windows since Start never creates anything to stop.
func (c *Cluster) Stop(sid corenet.SchemeID) error {
	return nil
}

// SendToWorker always fails on Windows.
func (c *Cluster) SendToWorker(sid corenet.SchemeID, wid WorkerID, tag uint8, payload []byte) error {
	return fmt.Errorf("cluster: unsupported on windows")
}

// SendToPID always fails on Windows.
func (c *Cluster) SendToPID(sid corenet.SchemeID, pid int, tag uint8, payload []byte) error {
	return fmt.Errorf("cluster: unsupported on windows")
}

// Broadcast always fails on Windows.
func (c *Cluster) Broadcast(sid corenet.SchemeID, tag uint8, payload []byte) error {
	return fmt.Errorf("cluster: unsupported on windows")
}
