package normalize

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ekaya-inc/taskboard/pkg/jsonutil"
	"github.com/ekaya-inc/taskboard/pkg/logging"
	"github.com/ekaya-inc/taskboard/pkg/models"
)

// RelationTitles maps a related page id to its display title.
type RelationTitles map[string]string

// PageFetcher retrieves one Notion page as decoded JSON.
type PageFetcher interface {
	GetPage(ctx context.Context, token, pageID string) (map[string]any, error)
}

// RelationResolver looks up the titles of pages referenced by the project
// and sprint relations of a batch of rows.
type RelationResolver struct {
	fetcher        PageFetcher
	conventions    *Conventions
	maxConcurrency int64
	fetchTimeout   time.Duration
	logger         *zap.Logger
}

// NewRelationResolver creates a resolver that keeps at most maxConcurrency
// page fetches in flight, each bounded by fetchTimeout.
func NewRelationResolver(fetcher PageFetcher, conventions *Conventions, maxConcurrency int, fetchTimeout time.Duration, logger *zap.Logger) *RelationResolver {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if conventions == nil {
		conventions = DefaultConventions()
	}
	return &RelationResolver{
		fetcher:        fetcher,
		conventions:    conventions,
		maxConcurrency: int64(maxConcurrency),
		fetchTimeout:   fetchTimeout,
		logger:         logger.Named("relations"),
	}
}

// Resolve fetches the title of every page referenced by the rows' project and
// sprint relations. Pages that cannot be fetched are left out of the result;
// the affected rows fall back to the relation's inline value.
func (r *RelationResolver) Resolve(ctx context.Context, rows []map[string]any, conn *models.Connection, mapping models.PropertyMapping) RelationTitles {
	ids := CollectRelationIDs(rows,
		r.conventions.RelationProperty(models.FieldProject, mapping),
		r.conventions.RelationProperty(models.FieldSprint, mapping),
	)
	titles := RelationTitles{}
	if len(ids) == 0 {
		return titles
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(r.maxConcurrency)
	)

	for _, id := range ids {
		if err := sem.Acquire(ctx, 1); err != nil {
			r.logger.Debug("Relation lookup cancelled",
				zap.String("workspace_id", conn.WorkspaceID),
				zap.Error(err))
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			title, ok := r.fetchTitle(ctx, conn, id)
			if !ok {
				return
			}
			mu.Lock()
			titles[id] = title
			mu.Unlock()
		}()
	}
	wg.Wait()

	r.logger.Debug("Resolved relation titles",
		zap.String("workspace_id", conn.WorkspaceID),
		zap.Int("requested", len(ids)),
		zap.Int("resolved", len(titles)))
	return titles
}

func (r *RelationResolver) fetchTitle(ctx context.Context, conn *models.Connection, id string) (string, bool) {
	if r.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
	}

	page, err := r.fetcher.GetPage(ctx, conn.AccessToken, id)
	if err != nil {
		r.logger.Debug("Relation page fetch failed",
			zap.String("workspace_id", conn.WorkspaceID),
			zap.String("page_id", id),
			zap.String("error", logging.SanitizeError(err)))
		return "", false
	}
	return PageTitle(page, id), true
}

// CollectRelationIDs returns the unique relation ids found under the given
// property names across all rows, in order of first appearance.
func CollectRelationIDs(rows []map[string]any, propNames ...string) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, name := range propNames {
		if name == "" {
			continue
		}
		for _, row := range rows {
			for _, id := range RelationIDs(RowProperties(row)[name]) {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// PageTitle picks the display title of a fetched page: the Name or Title
// property, then any title property, then the page id, then fallbackID.
func PageTitle(page map[string]any, fallbackID string) string {
	props := RowProperties(page)
	if t := titleText(props["Name"]); t != "" {
		return t
	}
	if t := titleText(props["Title"]); t != "" {
		return t
	}
	if t := FirstTitle(props); t != "" {
		return t
	}
	if id, _ := jsonutil.String(page["id"]); id != "" {
		return id
	}
	return fallbackID
}

// RowProperties returns the properties object of a page, or an empty map.
func RowProperties(row map[string]any) map[string]any {
	if props, ok := jsonutil.Object(row["properties"]); ok {
		return props
	}
	return map[string]any{}
}

// lookup returns the first resolved title among a relation's ids.
func (t RelationTitles) lookup(prop any) string {
	for _, id := range RelationIDs(prop) {
		if title, ok := t[id]; ok && title != "" {
			return title
		}
	}
	return ""
}
