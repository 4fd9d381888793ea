package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/atinyakov/GTDKeeper/internal/models"
)

// TaskRepository defines the persistence operations for per-account task data.
type TaskRepository interface {
	// Load returns the account's data set, or an empty one if nothing is stored yet.
	Load(ctx context.Context, username string) (*models.AccountData, error)
	// Update runs fn on the account's data set with exclusive access and
	// persists the result if fn returns nil.
	Update(ctx context.Context, username string, fn func(*models.AccountData) error) error
	// Delete drops the account's data set; a missing set is not an error.
	Delete(ctx context.Context, username string) error
}

// TaskService implements item and project operations for one account at a time.
type TaskService struct {
	repo TaskRepository
	now  func() time.Time
}

// NewTaskService constructs a TaskService using the provided repository.
func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{repo: repo, now: time.Now}
}

// GetAccountData returns the full data set for rendering.
func (s *TaskService) GetAccountData(ctx context.Context, username string) (*models.AccountData, error) {
	return s.repo.Load(ctx, username)
}

// CreateItem files a new item, assigning the next id. Status defaults to inbox.
func (s *TaskService) CreateItem(ctx context.Context, username string, in models.ItemInput) (models.Item, error) {
	if err := in.Validate(); err != nil {
		return models.Item{}, err
	}

	var created models.Item
	err := s.repo.Update(ctx, username, func(d *models.AccountData) error {
		it := models.Item{
			ID:          d.NextItemID,
			Title:       in.Title,
			Notes:       in.Notes,
			Status:      models.StatusInbox,
			ProjectID:   in.ProjectID,
			StartTime:   in.StartTime,
			DueDatetime: in.DueDatetime,
			Position:    in.Position,
			CreatedAt:   s.now(),
		}
		if in.Status != "" {
			it.ApplyStatus(in.Status)
		}
		d.Items = append(d.Items, it)
		d.NextItemID++
		created = it
		return nil
	})
	return created, err
}

// CreateProject adds a new project, assigning the next id. Status defaults to "active".
func (s *TaskService) CreateProject(ctx context.Context, username string, in models.ProjectInput) (models.Project, error) {
	var created models.Project
	err := s.repo.Update(ctx, username, func(d *models.AccountData) error {
		p := models.Project{
			ID:        d.NextProjectID,
			Name:      in.Name,
			Outcome:   in.Outcome,
			Status:    cmp.Or(in.Status, models.DefaultProjectStatus),
			CreatedAt: s.now(),
		}
		d.Projects = append(d.Projects, p)
		d.NextProjectID++
		created = p
		return nil
	})
	return created, err
}

// UpdateItem merges the supplied fields into item id.
func (s *TaskService) UpdateItem(ctx context.Context, username string, id int64, patch models.ItemPatch) (models.Item, error) {
	if err := patch.Validate(); err != nil {
		return models.Item{}, err
	}

	var updated models.Item
	err := s.repo.Update(ctx, username, func(d *models.AccountData) error {
		it := d.FindItem(id)
		if it == nil {
			return ErrNotFound
		}
		it.Apply(patch)
		updated = *it
		return nil
	})
	return updated, err
}

// ToggleDone flips item id between done and the bucket it came from.
func (s *TaskService) ToggleDone(ctx context.Context, username string, id int64) (models.Item, error) {
	var updated models.Item
	err := s.repo.Update(ctx, username, func(d *models.AccountData) error {
		it := d.FindItem(id)
		if it == nil {
			return ErrNotFound
		}
		it.ToggleDone()
		updated = *it
		return nil
	})
	return updated, err
}

// UpdateProject merges the supplied fields into project id.
func (s *TaskService) UpdateProject(ctx context.Context, username string, id int64, patch models.ProjectPatch) (models.Project, error) {
	var updated models.Project
	err := s.repo.Update(ctx, username, func(d *models.AccountData) error {
		p := d.FindProject(id)
		if p == nil {
			return ErrNotFound
		}
		p.Apply(patch)
		updated = *p
		return nil
	})
	return updated, err
}

// BatchUpdateItems applies each patch to the item named by its id and
// returns how many matched. Patches without an id, or naming an unknown
// item, are skipped.
func (s *TaskService) BatchUpdateItems(ctx context.Context, username string, patches []models.ItemPatch) (int, error) {
	for _, p := range patches {
		if err := p.Validate(); err != nil {
			return 0, err
		}
	}

	var n int
	err := s.repo.Update(ctx, username, func(d *models.AccountData) error {
		n = 0
		for _, p := range patches {
			if p.ID == 0 {
				continue
			}
			if it := d.FindItem(p.ID); it != nil {
				it.Apply(p)
				n++
			}
		}
		return nil
	})
	return n, err
}

// BatchUpdateProjects is BatchUpdateItems for projects.
func (s *TaskService) BatchUpdateProjects(ctx context.Context, username string, patches []models.ProjectPatch) (int, error) {
	var n int
	err := s.repo.Update(ctx, username, func(d *models.AccountData) error {
		n = 0
		for _, p := range patches {
			if p.ID == 0 {
				continue
			}
			if pr := d.FindProject(p.ID); pr != nil {
				pr.Apply(p)
				n++
			}
		}
		return nil
	})
	return n, err
}

// DeleteItem removes item id if present.
func (s *TaskService) DeleteItem(ctx context.Context, username string, id int64) error {
	return s.repo.Update(ctx, username, func(d *models.AccountData) error {
		d.Items = slices.DeleteFunc(d.Items, func(it models.Item) bool { return it.ID == id })
		return nil
	})
}

// DeleteProject removes project id and moves every item that referenced it
// back to the inbox. Items are never deleted with their project.
func (s *TaskService) DeleteProject(ctx context.Context, username string, id int64) error {
	return s.repo.Update(ctx, username, func(d *models.AccountData) error {
		d.Projects = slices.DeleteFunc(d.Projects, func(p models.Project) bool { return p.ID == id })
		for i := range d.Items {
			it := &d.Items[i]
			if it.ProjectID != nil && *it.ProjectID == id {
				it.ProjectID = nil
				it.Status = models.StatusInbox
				it.PreviousStatus = nil
			}
		}
		return nil
	})
}

// NextActions returns, per project, the open item with the lowest position.
// Projects without open items are left out.
func (s *TaskService) NextActions(ctx context.Context, username string) ([]models.NextAction, error) {
	d, err := s.repo.Load(ctx, username)
	if err != nil {
		return nil, err
	}

	out := []models.NextAction{}
	for _, p := range d.Projects {
		var next *models.Item
		for i := range d.Items {
			it := &d.Items[i]
			if it.ProjectID == nil || *it.ProjectID != p.ID || it.Status == models.StatusDone {
				continue
			}
			if next == nil || it.Position < next.Position || (it.Position == next.Position && it.ID < next.ID) {
				next = it
			}
		}
		if next != nil {
			out = append(out, models.NextAction{ProjectID: p.ID, ProjectName: p.Name, Item: *next})
		}
	}
	return out, nil
}

// Export returns a snapshot of the account's data.
func (s *TaskService) Export(ctx context.Context, username string) (models.Export, error) {
	d, err := s.repo.Load(ctx, username)
	if err != nil {
		return models.Export{}, err
	}
	return models.Export{AccountData: *d, ExportedAt: s.now()}, nil
}

// Import replaces the account's projects and items with those in src.
// Counters only move forward, so ids issued before the import stay retired.
func (s *TaskService) Import(ctx context.Context, username string, src models.AccountData) error {
	if err := validateImport(src); err != nil {
		return err
	}

	return s.repo.Update(ctx, username, func(d *models.AccountData) error {
		nextProject := max(d.NextProjectID, src.NextProjectID)
		nextItem := max(d.NextItemID, src.NextItemID)
		*d = src
		d.NextProjectID = nextProject
		d.NextItemID = nextItem
		d.Normalize()
		return nil
	})
}

func validateImport(src models.AccountData) error {
	projects := make(map[int64]struct{}, len(src.Projects))
	for _, p := range src.Projects {
		if p.ID <= 0 {
			return fmt.Errorf("%w: project id %d", ErrInvalidData, p.ID)
		}
		if _, dup := projects[p.ID]; dup {
			return fmt.Errorf("%w: duplicate project id %d", ErrInvalidData, p.ID)
		}
		projects[p.ID] = struct{}{}
	}

	items := make(map[int64]struct{}, len(src.Items))
	for _, it := range src.Items {
		if it.ID <= 0 {
			return fmt.Errorf("%w: item id %d", ErrInvalidData, it.ID)
		}
		if _, dup := items[it.ID]; dup {
			return fmt.Errorf("%w: duplicate item id %d", ErrInvalidData, it.ID)
		}
		if !it.Status.Valid() {
			return fmt.Errorf("%w: item %d has status %q", ErrInvalidData, it.ID, it.Status)
		}
		if it.PreviousStatus != nil && !it.PreviousStatus.Valid() {
			return fmt.Errorf("%w: item %d has previous status %q", ErrInvalidData, it.ID, *it.PreviousStatus)
		}
		items[it.ID] = struct{}{}
	}
	return nil
}
