package queueaccess

import (
	"context"
	"strconv"
	"strings"

	"visionrecall/internal/ipc"
	"visionrecall/internal/queue"
)

// Access provides queue operations regardless of IPC or direct store backing.
type Access interface {
	Live() bool
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]ipc.QueueItem, error)
	Clear(ctx context.Context, terminalOnly bool) (int64, error)
	Remove(ctx context.Context, refs []string) (int64, []string, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	Health(ctx context.Context) (queue.HealthSummary, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Live() bool { return true }

func (a *ipcAccess) Stats(_ context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.QueueStats, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string) ([]ipc.QueueItem, error) {
	resp, err := a.client.QueueList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Clear(_ context.Context, terminalOnly bool) (int64, error) {
	resp, err := a.client.Clear(terminalOnly)
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) Remove(_ context.Context, refs []string) (int64, []string, error) {
	resp, err := a.client.Remove(refs)
	if err != nil {
		return 0, nil, err
	}
	return resp.Removed, resp.NotFound, nil
}

func (a *ipcAccess) Retry(_ context.Context, ids []int64) (int64, error) {
	resp, err := a.client.Retry(ids)
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *ipcAccess) Health(_ context.Context) (queue.HealthSummary, error) {
	resp, err := a.client.QueueHealth()
	if err != nil {
		return queue.HealthSummary{}, err
	}
	return queue.HealthSummary{
		Total:      resp.Total,
		Pending:    resp.Pending,
		Processing: resp.Processing,
		Completed:  resp.Completed,
		Failed:     resp.Failed,
		Skipped:    resp.Skipped,
	}, nil
}

// storeAccess edits the journal while no daemon is running. Changes are
// picked up by the next daemon start.
type storeAccess struct {
	store *queue.Store
}

func (a *storeAccess) Live() bool { return false }

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out, nil
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]ipc.QueueItem, error) {
	var filters []queue.Status
	for _, s := range statuses {
		if parsed, ok := queue.ParseStatus(s); ok {
			filters = append(filters, parsed)
		}
	}
	items, err := a.store.List(ctx, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]ipc.QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, ipc.FromQueueItem(item))
	}
	return out, nil
}

func (a *storeAccess) Clear(ctx context.Context, terminalOnly bool) (int64, error) {
	if terminalOnly {
		return a.store.ClearTerminal(ctx)
	}
	return a.store.Clear(ctx)
}

func (a *storeAccess) Remove(ctx context.Context, refs []string) (int64, []string, error) {
	var count int64
	var notFound []string
	for _, ref := range refs {
		id, err := a.resolve(ctx, ref)
		if err != nil {
			return count, notFound, err
		}
		removed := false
		if id > 0 {
			if removed, err = a.store.Remove(ctx, id); err != nil {
				return count, notFound, err
			}
		}
		if removed {
			count++
		} else {
			notFound = append(notFound, ref)
		}
	}
	return count, notFound, nil
}

func (a *storeAccess) resolve(ctx context.Context, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	item, err := a.store.FindActiveByPath(ctx, ref)
	if err != nil || item == nil {
		return 0, err
	}
	return item.ID, nil
}

func (a *storeAccess) Retry(ctx context.Context, ids []int64) (int64, error) {
	return a.store.RetryFailed(ctx, ids...)
}

func (a *storeAccess) Health(ctx context.Context) (queue.HealthSummary, error) {
	return a.store.Health(ctx)
}
