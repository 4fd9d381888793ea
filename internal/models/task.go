package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidStatus is returned when an item status is outside the known buckets.
var ErrInvalidStatus = errors.New("invalid item status")

// Status is the bucket an item renders into.
type Status string

const (
	// StatusInbox is the default, unfiled bucket for newly captured items.
	StatusInbox Status = "inbox"
	// StatusSomeday holds deferred items that are not currently actionable.
	StatusSomeday Status = "someday"
	// StatusProjects marks an item as active inside its project.
	StatusProjects Status = "projects"
	// StatusDone marks a completed item.
	StatusDone Status = "done"
)

// statusActive is the name older clients used for StatusProjects.
const statusActive Status = "active"

// DefaultProjectStatus is assigned to projects created without a status.
const DefaultProjectStatus = "active"

// Canonical maps legacy bucket names onto the current ones.
func (s Status) Canonical() Status {
	if s == statusActive {
		return StatusProjects
	}
	return s
}

// UnmarshalJSON decodes a status string in its canonical form.
func (s *Status) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Status(v).Canonical()
	return nil
}

// Valid reports whether s is one of the known buckets or a legacy alias.
func (s Status) Valid() bool {
	switch s.Canonical() {
	case StatusInbox, StatusSomeday, StatusProjects, StatusDone:
		return true
	}
	return false
}

// Project groups items toward one outcome.
type Project struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Outcome   *string   `json:"outcome"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Item is a single captured task.
type Item struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Notes *string `json:"notes"`
	// Status is the current bucket.
	Status Status `json:"status"`
	// PreviousStatus remembers the bucket an item left when it was marked done.
	PreviousStatus *Status `json:"previousStatus,omitempty"`
	// ProjectID links the item to a project; nil means unfiled.
	ProjectID   *int64  `json:"projectId"`
	StartTime   *string `json:"startTime"`
	DueDatetime *string `json:"dueDatetime"`
	// Position orders items manually within their bucket or project.
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"createdAt"`
}

// ApplyStatus moves the item into bucket s. Entering done records the
// bucket being left; leaving done clears it.
func (it *Item) ApplyStatus(s Status) {
	s = s.Canonical()
	switch {
	case s == StatusDone:
		if it.Status != StatusDone {
			prev := it.Status
			it.PreviousStatus = &prev
			it.Status = StatusDone
		}
	case it.Status == StatusDone:
		it.Status = s
		it.PreviousStatus = nil
	default:
		it.Status = s
	}
}

// SetDone marks the item done or restores it to the bucket it was in
// before. Without a remembered bucket it falls back to the project bucket
// when filed and the inbox otherwise.
func (it *Item) SetDone(done bool) {
	if done {
		it.ApplyStatus(StatusDone)
		return
	}
	if it.Status != StatusDone {
		return
	}

	restored := it.defaultBucket()
	if it.PreviousStatus != nil && *it.PreviousStatus != StatusDone {
		restored = it.PreviousStatus.Canonical()
	}
	// an item whose project went away cannot go back to the project bucket
	if restored == StatusProjects && it.ProjectID == nil {
		restored = StatusInbox
	}
	it.Status = restored
	it.PreviousStatus = nil
}

// ToggleDone flips the done state.
func (it *Item) ToggleDone() {
	it.SetDone(it.Status != StatusDone)
}

func (it *Item) defaultBucket() Status {
	if it.ProjectID == nil {
		return StatusInbox
	}
	return StatusProjects
}

// ItemInput carries the fields accepted when creating an item.
type ItemInput struct {
	Title       string  `json:"title"`
	Notes       *string `json:"notes"`
	Status      Status  `json:"status"`
	ProjectID   *int64  `json:"projectId"`
	StartTime   *string `json:"startTime"`
	DueDatetime *string `json:"dueDatetime"`
	Position    int     `json:"position"`
}

// Validate checks the requested status, if any.
func (in ItemInput) Validate() error {
	if in.Status != "" && !in.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// ItemPatch is a partial item update. Absent fields are left untouched.
type ItemPatch struct {
	// ID selects the item in batch updates; it is never written to the item.
	ID          int64            `json:"id"`
	Title       *string          `json:"title"`
	Notes       Nullable[string] `json:"notes"`
	Status      *Status          `json:"status"`
	Done        *bool            `json:"done"`
	ProjectID   Nullable[int64]  `json:"projectId"`
	StartTime   Nullable[string] `json:"startTime"`
	DueDatetime Nullable[string] `json:"dueDatetime"`
	Position    *int             `json:"position"`
}

// Validate checks the requested status, if any.
func (p ItemPatch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Apply merges the supplied fields into the item. Project membership is
// applied before status so a restored bucket sees the new project.
func (it *Item) Apply(p ItemPatch) {
	if p.Title != nil {
		it.Title = *p.Title
	}
	if p.Notes.Set {
		it.Notes = p.Notes.Ptr()
	}
	if p.ProjectID.Set {
		it.ProjectID = p.ProjectID.Ptr()
	}
	if p.StartTime.Set {
		it.StartTime = p.StartTime.Ptr()
	}
	if p.DueDatetime.Set {
		it.DueDatetime = p.DueDatetime.Ptr()
	}
	if p.Position != nil {
		it.Position = *p.Position
	}
	if p.Status != nil {
		it.ApplyStatus(*p.Status)
	}
	if p.Done != nil {
		it.SetDone(*p.Done)
	}
}

// ProjectInput carries the fields accepted when creating a project.
type ProjectInput struct {
	Name    string  `json:"name"`
	Outcome *string `json:"outcome"`
	Status  string  `json:"status"`
}

// ProjectPatch is a partial project update.
type ProjectPatch struct {
	ID      int64            `json:"id"`
	Name    *string          `json:"name"`
	Outcome Nullable[string] `json:"outcome"`
	Status  *string          `json:"status"`
}

// Apply merges the supplied fields into the project.
func (pr *Project) Apply(p ProjectPatch) {
	if p.Name != nil {
		pr.Name = *p.Name
	}
	if p.Outcome.Set {
		pr.Outcome = p.Outcome.Ptr()
	}
	if p.Status != nil {
		pr.Status = *p.Status
	}
}

// AccountData is everything one account owns; it is stored as a unit.
type AccountData struct {
	Projects      []Project `json:"projects"`
	Items         []Item    `json:"items"`
	NextProjectID int64     `json:"nextProjectId"`
	NextItemID    int64     `json:"nextItemId"`
}

// NewAccountData returns the empty data set for a fresh account.
func NewAccountData() *AccountData {
	return &AccountData{
		Projects:      []Project{},
		Items:         []Item{},
		NextProjectID: 1,
		NextItemID:    1,
	}
}

// Normalize repairs a loaded data set: nil slices become empty, legacy
// status names are rewritten and both counters are raised above every id
// present.
func (d *AccountData) Normalize() {
	if d.Projects == nil {
		d.Projects = []Project{}
	}
	if d.Items == nil {
		d.Items = []Item{}
	}
	d.NextProjectID = max(d.NextProjectID, 1)
	d.NextItemID = max(d.NextItemID, 1)
	for _, p := range d.Projects {
		d.NextProjectID = max(d.NextProjectID, p.ID+1)
	}
	for i := range d.Items {
		it := &d.Items[i]
		it.Status = it.Status.Canonical()
		if it.PreviousStatus != nil {
			prev := it.PreviousStatus.Canonical()
			it.PreviousStatus = &prev
		}
		d.NextItemID = max(d.NextItemID, it.ID+1)
	}
}

// FindItem returns a pointer into d.Items, or nil.
func (d *AccountData) FindItem(id int64) *Item {
	for i := range d.Items {
		if d.Items[i].ID == id {
			return &d.Items[i]
		}
	}
	return nil
}

// FindProject returns a pointer into d.Projects, or nil.
func (d *AccountData) FindProject(id int64) *Project {
	for i := range d.Projects {
		if d.Projects[i].ID == id {
			return &d.Projects[i]
		}
	}
	return nil
}

// NextAction is the first open item of a project.
type NextAction struct {
	ProjectID   int64  `json:"projectId"`
	ProjectName string `json:"projectName"`
	Item        Item   `json:"item"`
}

// Export is a portable snapshot of an account's data.
type Export struct {
	AccountData
	ExportedAt time.Time `json:"exportedAt"`
}
