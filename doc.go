// Package cascade is a local-first, collaborative JSON-like document
// store: a replica holds nested maps and collaborative text that can
// be mutated locally and merged with peer replicas without
// coordination, converging to byte-identical state once both sides
// have observed the same operations.
//
// The hard engineering lives in the core engine packages
// (clientregistry, oplog, mapcrdt, internal/sequencetree, text, view,
// wire); this package is the thin façade over them: Doc, Transaction,
// and the merge coordinator.
package cascade

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cshekharsharma/cascade/clientregistry"
	"github.com/cshekharsharma/cascade/model"
	"github.com/cshekharsharma/cascade/oplog"
	"github.com/cshekharsharma/cascade/view"
	"github.com/cshekharsharma/cascade/wire"
)

// DocStatus distinguishes a fully materialized document from a lazy,
// read-only one backed only by its view cache.
type DocStatus uint8

const (
	// StatusReady means the full log and view have been materialized;
	// the document accepts writes.
	StatusReady DocStatus = iota
	// StatusLazy means the view cache, registry and operations have
	// been decoded but the operations have not been replayed; reads
	// are served from the view cache directly, and any write forces
	// materialization of the full log and view first.
	StatusLazy
)

func (s DocStatus) String() string {
	if s == StatusLazy {
		return "lazy"
	}
	return "ready"
}

// Option configures a Doc at construction. See WithLogger and
// WithGlobalClientID.
type Option func(*docConfig)

type docConfig struct {
	logger   *zap.Logger
	globalID clientregistry.GlobalClientID
}

// WithLogger overrides the default no-op zap logger every engine
// package in this module accepts.
func WithLogger(logger *zap.Logger) Option {
	return func(c *docConfig) { c.logger = logger }
}

// WithGlobalClientID overrides the default uuid.NewString()-generated
// stable identifier for this replica.
func WithGlobalClientID(globalID string) Option {
	return func(c *docConfig) { c.globalID = globalID }
}

func resolveConfig(opts []Option) *docConfig {
	c := &docConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.globalID == "" {
		c.globalID = uuid.NewString()
	}
	return c
}

// Doc is the document façade: it owns the client registry, the
// operation log, the live view, and (for a lazy handle) the view
// cache, and serializes access behind one mutex so that the core
// engine packages beneath it never need their own internal
// synchronization.
type Doc struct {
	mu sync.RWMutex

	status   DocStatus
	globalID clientregistry.GlobalClientID
	log      *zap.SugaredLogger

	registry *clientregistry.Registry
	oplog    *oplog.Log
	view     *view.View

	// cache backs a lazy document's reads before it has been
	// materialized, and is refreshed as the serialization snapshot
	// whenever a ready document is serialized.
	cache *view.Cache

	// pendingOperations holds a lazy document's decoded-but-not-yet-
	// replayed operation log, drained by Initialize/InitializeStep.
	pendingOperations []model.Operation

	clock model.Timestamp
}

// New creates a brand-new, empty, ready document owned by a freshly
// generated (or explicitly supplied) global client id.
func New(opts ...Option) *Doc {
	cfg := resolveConfig(opts)
	sugared := cfg.logger.Sugar()

	registry := clientregistry.New(cfg.globalID, 0, sugared)
	localID := registry.GetCurrentID()

	d := &Doc{
		status:   StatusReady,
		globalID: cfg.globalID,
		log:      sugared,
		registry: registry,
		oplog:    oplog.New(localID, sugared),
		view:     view.New(localID, sugared),
	}
	d.log.Debugw("created new document", "global_id", cfg.globalID)
	return d
}

// Load decodes buf and fully materializes the document: registry,
// operation log, and view are all rebuilt, and the document accepts
// writes immediately.
func Load(buf []byte, opts ...Option) (*Doc, error) {
	d, operations, err := loadCommon(buf, opts)
	if err != nil {
		return nil, err
	}

	for _, op := range operations {
		if _, err := d.oplog.ApplyOperation(op); err != nil {
			return nil, err
		}
	}
	if err := d.view.Repopulate(d.oplog, d.registry); err != nil {
		return nil, err
	}
	d.status = StatusReady
	d.log.Debugw("loaded document", "global_id", d.globalID, "operations", len(operations))
	return d, nil
}

// Lazy decodes buf into a read-only document backed by its view
// cache only; the operation log is buffered but not replayed until a
// write forces full materialization.
func Lazy(buf []byte, opts ...Option) (*Doc, error) {
	d, operations, err := loadCommon(buf, opts)
	if err != nil {
		return nil, err
	}
	d.pendingOperations = operations
	d.status = StatusLazy
	d.log.Debugw("loaded lazy document", "global_id", d.globalID, "operations", len(operations))
	return d, nil
}

func loadCommon(buf []byte, opts []Option) (*Doc, []model.Operation, error) {
	cfg := resolveConfig(opts)
	sugared := cfg.logger.Sugar()

	viewCacheBytes, clientRegistryBytes, operationLogBytes, err := wire.DecodeDocument(buf)
	if err != nil {
		return nil, nil, err
	}

	cache, _, err := view.FromBuffer(viewCacheBytes)
	if err != nil {
		return nil, nil, err
	}

	registry, _, remappings, err := clientregistry.FromBuffer(cfg.globalID, 0, clientRegistryBytes)
	if err != nil {
		return nil, nil, err
	}

	operations, _, err := wire.DecodeOperations(operationLogBytes)
	if err != nil {
		return nil, nil, err
	}

	// The buffer's operations reference clients by serialized position;
	// registering this replica's own id may have shifted those
	// positions, so translate before anything replays them.
	if remappings != nil {
		for i := range operations {
			operations[i].RemapClientIDs(remappings)
		}
	}

	localID := registry.GetCurrentID()
	d := &Doc{
		globalID: cfg.globalID,
		log:      sugared,
		registry: registry,
		oplog:    oplog.New(localID, sugared),
		view:     view.New(localID, sugared),
		cache:    cache,
	}
	d.observeTimestamps(operations)
	return d, operations, nil
}

// Status reports whether this handle is fully materialized or lazy.
func (d *Doc) Status() DocStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Initialize forces a lazy document to fully materialize its log and
// view. It is a no-op on an already-ready document.
func (d *Doc) Initialize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initializeLocked()
}

// InitializeStep replays at most n buffered operations, useful for
// amortizing materialization of a large lazy document across several
// calls instead of one. A non-positive n replays every buffered
// operation. Once every buffered operation has been applied, the
// document transitions to StatusReady.
func (d *Doc) InitializeStep(n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status == StatusReady {
		return nil
	}
	if n <= 0 || n > len(d.pendingOperations) {
		n = len(d.pendingOperations)
	}

	for _, op := range d.pendingOperations[:n] {
		if _, err := d.oplog.ApplyOperation(op); err != nil {
			return err
		}
	}
	d.pendingOperations = d.pendingOperations[n:]

	if len(d.pendingOperations) == 0 {
		if err := d.view.Repopulate(d.oplog, d.registry); err != nil {
			return err
		}
		d.status = StatusReady
	}
	return nil
}

func (d *Doc) initializeLocked() error {
	if d.status == StatusReady {
		return nil
	}
	for _, op := range d.pendingOperations {
		if _, err := d.oplog.ApplyOperation(op); err != nil {
			return err
		}
	}
	d.pendingOperations = nil
	if err := d.view.Repopulate(d.oplog, d.registry); err != nil {
		return err
	}
	d.status = StatusReady
	return nil
}

// Serialize snapshots the document into the three-region wire format:
// view cache, client registry, operation log. A ready document's cache
// is refreshed from its live view first, and its operations are
// written in the deterministic sorted order, so two replicas holding
// the same operation set serialize to identical bytes no matter what
// order they received them in. A lazy document's original cache and
// buffered log are re-emitted unchanged.
func (d *Doc) Serialize() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.status == StatusReady {
		cache := view.Snapshot(d.view)
		return wire.EncodeDocument(cache.Serialize(), d.registry.Serialize(), wire.EncodeOperations(d.sortedOperations()))
	}

	applied := d.oplog.Iter()
	operations := make([]model.Operation, 0, len(applied)+len(d.pendingOperations))
	operations = append(operations, applied...)
	operations = append(operations, d.pendingOperations...)
	return wire.EncodeDocument(d.cache.Serialize(), d.registry.Serialize(), wire.EncodeOperations(operations))
}

// Get reads selector from the map at object, using the live view when
// ready or the view cache when lazy.
func (d *Doc) Get(object model.ObjRef, selector model.Selector) (model.Value, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.status == StatusReady {
		return d.view.Get(object, selector)
	}
	return d.cache.Get(object, selector)
}

// GetText reads the flat string content of the text object at ref.
func (d *Doc) GetText(ref model.ObjRef) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.status == StatusReady {
		return d.view.GetText(ref)
	}
	return d.cache.GetText(ref)
}

// AsMap flattens the entire document (root and everything reachable
// from it) into plain Go values.
func (d *Doc) AsMap() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.status == StatusReady {
		return d.view.AsMap()
	}
	return d.cache.AsMap()
}

// nextTimestamp hands out a strictly increasing logical timestamp for
// locally authored operations.
func (d *Doc) nextTimestamp() model.Timestamp {
	d.clock++
	return d.clock
}

// observeTimestamps advances the logical clock past every timestamp in
// ops, so writes made after a load or merge always tie-break above the
// history they follow.
func (d *Doc) observeTimestamps(ops []model.Operation) {
	for _, op := range ops {
		if op.Timestamp > d.clock {
			d.clock = op.Timestamp
		}
	}
}
