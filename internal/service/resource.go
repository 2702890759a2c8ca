// Package service holds the business operations: one generic controller per
// resource schema and the session-based auth service.  Every operation
// returns *Error so that adapters only need to map kinds.
package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/resource-api/internal/metrics"
	"github.com/iliyamo/resource-api/internal/queue"
	"github.com/iliyamo/resource-api/internal/repository"
	"github.com/iliyamo/resource-api/internal/schema"
	"github.com/iliyamo/resource-api/internal/utils"
)

// ResourceStore is the table gateway a Controller writes through.
// *repository.ResourceRepo implements it.
type ResourceStore interface {
	List(ctx context.Context, p repository.ListParams) ([]schema.Record, int64, error)
	Get(ctx context.Context, id int64) (schema.Record, error)
	FindBy(ctx context.Context, field string, value any) (schema.Record, error)
	Insert(ctx context.Context, values schema.Record) (int64, error)
	Update(ctx context.Context, id int64, changes schema.Record) error
	Delete(ctx context.Context, id int64) error
}

// Paging limits.
const (
	DefaultPerPage = 10
	MaxPerPage     = 1000
)

// ListQuery is a parsed list request.
type ListQuery struct {
	Page    int
	PerPage int
	Sort    string
	Desc    bool
	Filters map[string]string
}

// ParseListQuery reads page, perPage, sort and order from params; every
// other key becomes a substring filter.  Filter and sort names are checked
// against the schema by Controller.List.
func ParseListQuery(params map[string]string) (ListQuery, error) {
	q := ListQuery{Page: 1, PerPage: DefaultPerPage, Sort: schema.IDField, Filters: map[string]string{}}
	for k, v := range params {
		switch k {
		case "page":
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 1 {
				return ListQuery{}, validationError("page must be a positive integer", "page")
			}
			q.Page = n
		case "perPage":
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 1 || n > MaxPerPage {
				return ListQuery{}, validationError(fmt.Sprintf("perPage must be between 1 and %d", MaxPerPage), "perPage")
			}
			q.PerPage = n
		case "sort":
			if v != "" {
				q.Sort = v
			}
		case "order":
			switch strings.ToLower(v) {
			case "", "asc":
			case "desc":
				q.Desc = true
			default:
				return ListQuery{}, validationError("order must be asc or desc", "order")
			}
		default:
			q.Filters[k] = v
		}
	}
	return q, nil
}

// Page is one slice of a listing.  Total ignores paging.
type Page struct {
	Items   []schema.Record `json:"items"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	PerPage int             `json:"perPage"`
}

// ControllerConfig carries the collaborators of a Controller.  Events and
// Metrics may be nil.
type ControllerConfig struct {
	Timeout time.Duration
	Hook    utils.PasswordHook
	Events  Publisher
	Metrics *metrics.Metrics
}

// Controller implements list/get/create/update/delete for one schema over
// one table.  It is immutable after construction.
type Controller struct {
	schema  *schema.Schema
	store   ResourceStore
	timeout time.Duration
	hook    utils.PasswordHook
	events  Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewController(s *schema.Schema, store ResourceStore, cfg ControllerConfig) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Controller{
		schema:  s,
		store:   store,
		timeout: cfg.Timeout,
		hook:    cfg.Hook,
		events:  cfg.Events,
		metrics: cfg.Metrics,
		now:     time.Now,
	}
}

// Schema returns the schema the controller is bound to.
func (c *Controller) Schema() *schema.Schema { return c.schema }

func (c *Controller) observe(op string, err error) {
	c.metrics.Resource(c.schema.Table(), op, resultOf(err))
}

func (c *Controller) notFound() string { return c.schema.Name() + " not found" }

// List returns one page of records matching every filter.
func (c *Controller) List(ctx context.Context, q ListQuery) (page Page, err error) {
	defer func() { c.observe("list", err) }()

	if !c.schema.Sortable(q.Sort) {
		return Page{}, validationError("cannot sort by "+q.Sort, "sort")
	}
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		if !c.schema.Filterable(k) {
			return Page{}, validationError("unknown filter "+k, k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	filters := make([]repository.Filter, 0, len(keys))
	for _, k := range keys {
		filters = append(filters, repository.Filter{Field: k, Value: q.Filters[k]})
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage < 1 || q.PerPage > MaxPerPage {
		q.PerPage = DefaultPerPage
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	items, total, err := c.store.List(ctx, repository.ListParams{
		Filters: filters,
		Sort:    q.Sort,
		Desc:    q.Desc,
		Limit:   q.PerPage,
		Offset:  (q.Page - 1) * q.PerPage,
	})
	if err != nil {
		return Page{}, translate(ctx, c.schema.Table()+".list", err, c.notFound())
	}
	for i := range items {
		items[i] = strip(items[i])
	}
	return Page{Items: items, Total: total, Page: q.Page, PerPage: q.PerPage}, nil
}

// Get returns one record without its password.
func (c *Controller) Get(ctx context.Context, id int64) (rec schema.Record, err error) {
	defer func() { c.observe("get", err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	rec, err = c.store.Get(ctx, id)
	if err != nil {
		return nil, translate(ctx, c.schema.Table()+".get", err, c.notFound())
	}
	return strip(rec), nil
}

// Create validates body, hashes any password and inserts the record.
func (c *Controller) Create(ctx context.Context, body map[string]any) (rec schema.Record, err error) {
	defer func() { c.observe("create", err) }()
	op := c.schema.Table() + ".create"

	values, err := c.schema.Validate(body, false)
	if err != nil {
		return nil, translate(ctx, op, err, "")
	}
	if err := c.hook.Apply(values, ""); err != nil {
		return nil, hookError(ctx, op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	id, err := c.store.Insert(ctx, values)
	if err != nil {
		return nil, translate(ctx, op, err, c.notFound())
	}
	rec, err = c.store.Get(ctx, id)
	if err != nil {
		return nil, translate(ctx, op, err, c.notFound())
	}
	emit(ctx, c.events, queue.AuditEvent{Type: queue.ResourceCreated, Resource: c.schema.Table(), RecordID: id}, c.now())
	return strip(rec), nil
}

// Update applies the supplied fields that differ from the stored record.
// When nothing differs the stored record is returned without a write.
func (c *Controller) Update(ctx context.Context, id int64, body map[string]any) (rec schema.Record, err error) {
	defer func() { c.observe("update", err) }()
	op := c.schema.Table() + ".update"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	current, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, translate(ctx, op, err, c.notFound())
	}
	changes, err := c.schema.Validate(body, true)
	if err != nil {
		return nil, translate(ctx, op, err, "")
	}
	for k, v := range changes {
		if k != schema.PasswordField && current[k] == v {
			delete(changes, k)
		}
	}
	prevHash, _ := current[schema.PasswordField].(string)
	if err := c.hook.Apply(changes, prevHash); err != nil {
		return nil, hookError(ctx, op, err)
	}
	if len(changes) == 0 {
		return strip(current), nil
	}

	if err := c.store.Update(ctx, id, changes); err != nil {
		return nil, translate(ctx, op, err, c.notFound())
	}
	rec, err = c.store.Get(ctx, id)
	if err != nil {
		return nil, translate(ctx, op, err, c.notFound())
	}
	emit(ctx, c.events, queue.AuditEvent{Type: queue.ResourceUpdated, Resource: c.schema.Table(), RecordID: id}, c.now())
	return strip(rec), nil
}

// Delete removes the record and returns its id.
func (c *Controller) Delete(ctx context.Context, id int64) (rec schema.Record, err error) {
	defer func() { c.observe("delete", err) }()
	op := c.schema.Table() + ".delete"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.store.Get(ctx, id); err != nil {
		return nil, translate(ctx, op, err, c.notFound())
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return nil, translate(ctx, op, err, c.notFound())
	}
	emit(ctx, c.events, queue.AuditEvent{Type: queue.ResourceDeleted, Resource: c.schema.Table(), RecordID: id}, c.now())
	return schema.Record{schema.IDField: id}, nil
}

func strip(r schema.Record) schema.Record {
	if _, ok := r[schema.PasswordField]; !ok {
		return r
	}
	return r.Without(schema.PasswordField)
}
