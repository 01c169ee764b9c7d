package it

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"versync/internal/history"
	"versync/internal/peer"
	"versync/internal/storage"
	"versync/internal/syncer"
	"versync/internal/transfer"
)

// Cluster is a set of machines syncing through one hub.
type Cluster struct {
	dir      string
	log      *logrus.Entry
	hub      *Hub
	machines []*Machine
	mu       sync.Mutex
}

// Hub serves a file remote over gRPC.
type Hub struct {
	Addr   string
	cancel context.CancelFunc
	done   chan error
}

// Machine is one participant with its own SQLite version log.
type Machine struct {
	ID     string
	Store  *storage.SQLiteStore
	Syncer *syncer.Syncer
	client *peer.Client
}

// NewCluster creates a cluster whose files live under dir.
func NewCluster(dir string, log *logrus.Entry) *Cluster {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Cluster{dir: dir, log: log}
}

// StartHub starts the hub. A restarted hub keeps its address and files.
func (c *Cluster) StartHub(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	addr := "127.0.0.1:0"
	if c.hub != nil {
		if c.hub.cancel != nil {
			return fmt.Errorf("hub already running on %s", c.hub.Addr)
		}
		addr = c.hub.Addr
	}

	backend, err := transfer.NewFileBackend(filepath.Join(c.dir, "hub"))
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	hub := &Hub{
		Addr:   lis.Addr().String(),
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		hub.done <- peer.NewServer(backend, c.log).Serve(ctx, lis)
	}()

	c.hub = hub
	return nil
}

// StopHub stops the hub and waits for it to exit.
func (c *Cluster) StopHub() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopHub()
}

func (c *Cluster) stopHub() error {
	if c.hub == nil || c.hub.cancel == nil {
		return nil
	}
	c.hub.cancel()
	err := <-c.hub.done
	c.hub.cancel = nil
	return err
}

// AddMachine starts a machine connected to the hub and waits until the hub
// answers it.
func (c *Cluster) AddMachine(ctx context.Context, id string, now func() time.Time) (*Machine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hub == nil {
		return nil, fmt.Errorf("hub not started")
	}

	store, err := storage.OpenSQLite(filepath.Join(c.dir, id+".db"))
	if err != nil {
		return nil, err
	}
	client, err := peer.Dial(c.hub.Addr)
	if err != nil {
		store.Close()
		return nil, err
	}
	s, err := syncer.New(store, client, syncer.Options{
		Machine: id,
		History: history.LoaderOptions{},
		Timeout: 10 * time.Second,
		Now:     now,
	}, c.log)
	if err != nil {
		client.Close()
		store.Close()
		return nil, err
	}

	m := &Machine{ID: id, Store: store, Syncer: s, client: client}
	if err := waitForReady(ctx, m, 10*time.Second); err != nil {
		m.Stop()
		return nil, fmt.Errorf("machine %s failed to reach the hub: %w", id, err)
	}

	c.machines = append(c.machines, m)
	return m, nil
}

// waitForReady polls the hub through the machine's client.
func waitForReady(ctx context.Context, m *Machine, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		listCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := m.client.List(listCtx, history.Prefix)
		cancel()
		if err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				return fmt.Errorf("timeout waiting for hub: %w", err)
			}
		}
	}
}

// WaitForHub waits until every machine reaches the hub again.
func (c *Cluster) WaitForHub(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.machines {
		if err := waitForReady(ctx, m, 10*time.Second); err != nil {
			return fmt.Errorf("machine %s: %w", m.ID, err)
		}
	}
	return nil
}

// Machine returns a machine by ID.
func (c *Cluster) Machine(id string) *Machine {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.machines {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// SyncAll runs one cycle on every machine, in the order they were added.
func (c *Cluster) SyncAll(ctx context.Context) error {
	c.mu.Lock()
	machines := append([]*Machine(nil), c.machines...)
	c.mu.Unlock()

	for _, m := range machines {
		if _, err := m.Syncer.Cycle(ctx); err != nil {
			return fmt.Errorf("machine %s: %w", m.ID, err)
		}
	}
	return nil
}

// Stop stops every machine and the hub.
func (c *Cluster) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	for _, m := range c.machines {
		err = multierr.Append(err, m.Stop())
	}
	c.machines = nil
	return multierr.Append(err, c.stopHub())
}

// Stop closes the machine's connection and version log.
func (m *Machine) Stop() error {
	return multierr.Combine(m.client.Close(), m.Store.Close())
}
