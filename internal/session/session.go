// Package session holds the active profile, the entry form and the view
// filters, and mediates every user command to the store.
//
// A Controller is not safe for concurrent use: commands are expected to run
// one at a time, each to completion.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/volunteer-log/internal/logging"
	"github.com/Tiliavir/volunteer-log/internal/model"
	"github.com/Tiliavir/volunteer-log/internal/query"
	"github.com/Tiliavir/volunteer-log/internal/storage"
)

// ErrNoActiveProfile is returned by entry commands before any profile exists
// or is selected.
var ErrNoActiveProfile = fmt.Errorf("%w: no active profile", model.ErrNotFound)

// FormMode is the state of the entry form.
type FormMode int

const (
	// FormIdle means there is no draft because no profile is active.
	FormIdle FormMode = iota
	// FormCreating holds a blank draft for a new entry.
	FormCreating
	// FormEditing holds a draft copied from an existing entry.
	FormEditing
)

func (m FormMode) String() string {
	switch m {
	case FormCreating:
		return "creating"
	case FormEditing:
		return "editing"
	default:
		return "idle"
	}
}

// Draft is the not-yet-persisted form content, kept as typed.
type Draft struct {
	Place string
	Date  string
	Hours string
	Notes string
}

// DraftFrom copies an entry into a draft.
func DraftFrom(e model.Entry) Draft {
	return Draft{
		Place: e.Place,
		Date:  e.Date,
		Hours: strconv.FormatFloat(e.Hours, 'f', -1, 64),
		Notes: e.Notes,
	}
}

// Fields validates the draft and converts it for the store.
func (d Draft) Fields() (model.EntryFields, error) {
	place := strings.TrimSpace(d.Place)
	if place == "" {
		return model.EntryFields{}, &model.ValidationError{Field: "place", Reason: "must not be empty"}
	}
	date := strings.TrimSpace(d.Date)
	if date == "" {
		return model.EntryFields{}, &model.ValidationError{Field: "date", Reason: "must not be empty"}
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return model.EntryFields{}, &model.ValidationError{Field: "date", Reason: "must be a YYYY-MM-DD date"}
	}
	hours, err := query.ParseHours(d.Hours)
	if err != nil {
		return model.EntryFields{}, err
	}
	return model.EntryFields{Place: place, Date: date, Hours: hours, Notes: d.Notes}, nil
}

// Form is the entry form sub-machine.
type Form struct {
	Mode      FormMode
	EditingID string
	Draft     Draft
}

// View is the active profile and the (year, page) filter.
type View struct {
	ProfileID string
	Year      int
	Page      int
}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Clock   Clock
	Logger  *zap.Logger
	PerPage int
}

// Controller is the session state machine.
type Controller struct {
	store   storage.Store
	clock   Clock
	log     *zap.Logger
	perPage int

	profiles []model.Profile
	entries  []model.Entry
	form     Form
	view     View
}

// New returns an idle controller. Call Load before issuing commands.
func New(store storage.Store, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.PerPage <= 0 {
		opts.PerPage = query.DefaultPerPage
	}
	return &Controller{
		store:   store,
		clock:   opts.Clock,
		log:     logging.Named(opts.Logger, "session"),
		perPage: opts.PerPage,
		form:    Form{Mode: FormIdle},
		view:    View{Year: query.AllYears, Page: 1},
	}
}

// Load reads the profiles and activates preferredID when it exists,
// otherwise the first profile by name. With no profiles the controller
// stays idle.
func (c *Controller) Load(ctx context.Context, preferredID string) error {
	profiles, err := c.store.ListProfiles(ctx)
	if err != nil {
		return err
	}
	c.profiles = profiles

	target := ""
	if _, ok := c.findProfile(preferredID); ok {
		target = preferredID
	} else if len(profiles) > 0 {
		target = profiles[0].ID
	}
	if target == "" {
		c.goIdle()
		return nil
	}
	return c.activate(ctx, target)
}

// Profiles returns all profiles ordered by name.
func (c *Controller) Profiles() []model.Profile {
	return append([]model.Profile{}, c.profiles...)
}

// ActiveProfile returns the active profile, if any.
func (c *Controller) ActiveProfile() (model.Profile, bool) {
	return c.findProfile(c.view.ProfileID)
}

// Entries returns the active profile's entries in store order.
func (c *Controller) Entries() []model.Entry {
	return append([]model.Entry{}, c.entries...)
}

// Form returns the current form state.
func (c *Controller) Form() Form { return c.form }

// View returns the current view filters.
func (c *Controller) View() View { return c.view }

// Today returns the current time from the controller's clock.
func (c *Controller) Today() time.Time { return c.clock.Now() }

// PerPage returns the page size.
func (c *Controller) PerPage() int { return c.perPage }

// Years returns the years available to the year filter.
func (c *Controller) Years() []int {
	return query.DistinctYears(c.entries)
}

// Filtered returns the entries matching the year filter, newest first.
func (c *Controller) Filtered() []model.Entry {
	return query.SortByDateDesc(query.FilterByYear(c.entries, c.view.Year))
}

// Page returns the entries visible on the current page.
func (c *Controller) Page() []model.Entry {
	return query.Paginate(c.Filtered(), c.view.Page, c.perPage)
}

// TotalPages returns the page count for the current filter.
func (c *Controller) TotalPages() int {
	return query.TotalPages(len(query.FilterByYear(c.entries, c.view.Year)), c.perPage)
}

// FilteredHours sums the hours matching the year filter.
func (c *Controller) FilteredHours() float64 {
	return query.SumHours(query.FilterByYear(c.entries, c.view.Year))
}

// TotalHours sums all hours of the active profile.
func (c *Controller) TotalHours() float64 {
	return query.SumHours(c.entries)
}

// SetDraft replaces the draft content, keeping the form mode.
func (c *Controller) SetDraft(d Draft) error {
	if c.form.Mode == FormIdle {
		return ErrNoActiveProfile
	}
	c.form.Draft = d
	return nil
}

// StartEdit switches the form to editing the given entry.
func (c *Controller) StartEdit(ctx context.Context, entryID string) error {
	if c.form.Mode == FormIdle {
		return ErrNoActiveProfile
	}
	e, ok := c.findEntry(entryID)
	if !ok {
		// The snapshot may be stale; reconcile before giving up.
		if err := c.refresh(ctx); err != nil {
			return err
		}
		if e, ok = c.findEntry(entryID); !ok {
			return fmt.Errorf("%w: entry %q", model.ErrNotFound, entryID)
		}
	}
	c.form = Form{Mode: FormEditing, EditingID: e.ID, Draft: DraftFrom(e)}
	c.log.Debug("editing entry", zap.String("entry_id", e.ID))
	return nil
}

// CancelEdit discards the draft and returns to a blank new-entry form.
func (c *Controller) CancelEdit() {
	if c.form.Mode == FormIdle {
		return
	}
	c.resetForm()
}

// SubmitForm validates the draft and creates or updates the entry. Invalid
// drafts are rejected without a store call. On store failure the draft is
// kept so the user can retry.
func (c *Controller) SubmitForm(ctx context.Context) (model.Entry, error) {
	if c.form.Mode == FormIdle {
		return model.Entry{}, ErrNoActiveProfile
	}
	fields, err := c.form.Draft.Fields()
	if err != nil {
		return model.Entry{}, err
	}

	var saved model.Entry
	if c.form.Mode == FormEditing {
		saved, err = c.store.UpdateEntry(ctx, c.form.EditingID, fields)
	} else {
		saved, err = c.store.CreateEntry(ctx, c.view.ProfileID, fields)
	}
	if err != nil {
		return model.Entry{}, c.storeFailed(ctx, "submit entry", err)
	}

	if i := c.entryIndex(saved.ID); i >= 0 {
		c.entries[i] = saved
	} else {
		c.entries = append(c.entries, saved)
	}
	c.log.Debug("entry saved", zap.String("entry_id", saved.ID), zap.Stringer("mode", c.form.Mode))
	c.resetForm()
	return saved, nil
}

// DeleteEntry removes an entry of the active profile. Ids of other profiles
// or of entries already gone are NotFound and never reach the store. If the
// current page is left empty it moves back one page.
func (c *Controller) DeleteEntry(ctx context.Context, id string) error {
	if c.form.Mode == FormIdle {
		return ErrNoActiveProfile
	}
	if _, ok := c.findEntry(id); !ok {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		if _, ok := c.findEntry(id); !ok {
			return fmt.Errorf("%w: entry %q", model.ErrNotFound, id)
		}
	}
	if err := c.store.DeleteEntry(ctx, id); err != nil {
		return c.storeFailed(ctx, "delete entry", err)
	}

	if i := c.entryIndex(id); i >= 0 {
		c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
	}
	if c.form.Mode == FormEditing && c.form.EditingID == id {
		c.resetForm()
	}
	if c.view.Page > 1 && len(c.Page()) == 0 {
		c.view.Page--
	}
	c.log.Debug("entry deleted", zap.String("entry_id", id))
	return nil
}

// CreateProfile adds a profile and makes it active.
func (c *Controller) CreateProfile(ctx context.Context, name string) (model.Profile, error) {
	p, err := c.store.CreateProfile(ctx, name)
	if err != nil {
		return model.Profile{}, c.storeFailed(ctx, "create profile", err)
	}
	c.profiles = append(c.profiles, p)
	model.SortProfiles(c.profiles)
	c.log.Info("profile created", zap.String("profile_id", p.ID), zap.String("name", p.Name))
	return p, c.activate(ctx, p.ID)
}

// SwitchProfile activates another profile, resetting the year filter and
// page and reloading its entries.
func (c *Controller) SwitchProfile(ctx context.Context, id string) error {
	if _, ok := c.findProfile(id); !ok {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		if _, ok := c.findProfile(id); !ok {
			return fmt.Errorf("%w: profile %q", model.ErrNotFound, id)
		}
	}
	return c.activate(ctx, id)
}

// DeleteProfile removes a profile and all of its entries. When the active
// profile is removed the first remaining profile becomes active.
func (c *Controller) DeleteProfile(ctx context.Context, id string) error {
	if err := c.store.DeleteProfile(ctx, id); err != nil {
		return c.storeFailed(ctx, "delete profile", err)
	}

	for i, p := range c.profiles {
		if p.ID == id {
			c.profiles = append(c.profiles[:i:i], c.profiles[i+1:]...)
			break
		}
	}
	c.log.Info("profile deleted", zap.String("profile_id", id))

	if id != c.view.ProfileID {
		return nil
	}
	if len(c.profiles) == 0 {
		c.goIdle()
		return nil
	}
	return c.activate(ctx, c.profiles[0].ID)
}

// SetYearFilter selects a year (query.AllYears for all) and returns to the
// first page.
func (c *Controller) SetYearFilter(year int) {
	c.view.Year = year
	c.view.Page = 1
}

// SetPage moves to page n, clamped to the available pages.
func (c *Controller) SetPage(n int) {
	c.view.Page = max(1, min(n, c.TotalPages()))
}

// activate loads the profile's entries and commits it as the active profile.
// Nothing changes if the load fails.
func (c *Controller) activate(ctx context.Context, id string) error {
	entries, err := c.store.ListEntries(ctx, id)
	if err != nil {
		return c.storeFailed(ctx, "load entries", err)
	}
	c.entries = entries
	c.view = View{ProfileID: id, Year: query.AllYears, Page: 1}
	c.resetForm()
	c.log.Debug("profile active", zap.String("profile_id", id), zap.Int("entries", len(entries)))
	return nil
}

func (c *Controller) goIdle() {
	c.entries = nil
	c.view = View{Year: query.AllYears, Page: 1}
	c.form = Form{Mode: FormIdle}
}

// refresh reconciles the in-memory profiles and entries with the store.
func (c *Controller) refresh(ctx context.Context) error {
	profiles, err := c.store.ListProfiles(ctx)
	if err != nil {
		return err
	}
	c.profiles = profiles

	if _, ok := c.findProfile(c.view.ProfileID); !ok {
		if len(profiles) == 0 {
			c.goIdle()
			return nil
		}
		return c.activate(ctx, profiles[0].ID)
	}

	entries, err := c.store.ListEntries(ctx, c.view.ProfileID)
	if err != nil {
		return err
	}
	c.entries = entries
	if c.form.Mode == FormEditing {
		if _, ok := c.findEntry(c.form.EditingID); !ok {
			c.resetForm()
		}
	}
	c.SetPage(c.view.Page)
	return nil
}

// storeFailed logs a failed store call and, for missing ids, reconciles the
// snapshot. The original error is returned either way.
func (c *Controller) storeFailed(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrConflict):
		c.log.Debug(op+" rejected", zap.Error(err))
	case errors.Is(err, model.ErrNotFound):
		c.log.Warn(op+" referenced a missing record", zap.Error(err))
		if rerr := c.refresh(ctx); rerr != nil {
			c.log.Error("refresh after missing record failed", zap.Error(rerr))
			return errors.Join(err, rerr)
		}
	default:
		c.log.Error(op+" failed", zap.Error(err))
	}
	return err
}

func (c *Controller) resetForm() {
	c.form = Form{
		Mode:  FormCreating,
		Draft: Draft{Date: c.clock.Now().Format(model.DateLayout)},
	}
}

func (c *Controller) findProfile(id string) (model.Profile, bool) {
	if id == "" {
		return model.Profile{}, false
	}
	for _, p := range c.profiles {
		if p.ID == id {
			return p, true
		}
	}
	return model.Profile{}, false
}

func (c *Controller) entryIndex(id string) int {
	for i, e := range c.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) findEntry(id string) (model.Entry, bool) {
	if i := c.entryIndex(id); i >= 0 {
		return c.entries[i], true
	}
	return model.Entry{}, false
}
