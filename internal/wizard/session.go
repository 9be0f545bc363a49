package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/campaignhq/campaignhq/pkg/audience"
	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

// DefaultDescription is sent when the operator leaves the description empty.
const DefaultDescription = "Created via Wizard"

// DefaultSession names the draft slot used when none is given.
const DefaultSession = "default"

// Backend is the part of the API client the wizard calls.
type Backend interface {
	UploadDataset(ctx context.Context, path string) (*core.UploadResult, error)
	TestFilter(ctx context.Context, path string, filter *core.FilterPayload) (*core.FilterResult, error)
	CreateTemplate(ctx context.Context, req *core.CreateTemplateRequest) (*core.CreateTemplateResult, error)
}

// Options configures a Session.
type Options struct {
	// Session scopes the draft; defaults to DefaultSession.
	Session string
	Logger  *slog.Logger
}

// Session is a Wizard whose every change is saved to a draft store.
// Failed backend calls leave the wizard exactly as it was.
type Session struct {
	w         *Wizard
	store     core.DraftStore
	backend   Backend
	name      string
	recovered bool
	logger    *slog.Logger
}

// Open loads the session's draft, or starts a fresh wizard when there is
// none. A draft that can no longer be decoded is discarded.
func Open(ctx context.Context, store core.DraftStore, backend Backend, opts Options) (*Session, error) {
	if opts.Session == "" {
		opts.Session = DefaultSession
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	s := &Session{
		w:       New(),
		store:   store,
		backend: backend,
		name:    opts.Session,
		logger:  opts.Logger.With("session", opts.Session),
	}

	stored, err := store.LoadDraft(ctx, s.name, CacheKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}
	if stored == nil {
		return s, nil
	}

	w, err := restore(stored.Payload)
	if err != nil {
		s.logger.Warn("discarding unreadable draft", "error", err)
		if err := store.DeleteDraft(ctx, s.name, CacheKey); err != nil {
			return nil, fmt.Errorf("failed to discard draft: %w", err)
		}
		return s, nil
	}
	s.w = w
	s.recovered = true
	s.logger.Debug("draft recovered", "step", w.Step())
	return s, nil
}

func restore(payload []byte) (*Wizard, error) {
	d, err := UnmarshalDraft(payload)
	if err != nil {
		return nil, err
	}
	return Rehydrate(d)
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Recovered reports whether Open loaded an existing draft.
func (s *Session) Recovered() bool { return s.recovered }

// Wizard returns the underlying state machine for read access. Changes
// made through it are not saved; use the Session methods.
func (s *Session) Wizard() *Wizard { return s.w }

// Upload sends the CSV at path to the backend and records the dataset.
func (s *Session) Upload(ctx context.Context, path string) (*core.UploadResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	res, err := s.backend.UploadDataset(ctx, abs)
	if err != nil {
		return nil, err
	}
	if res.TempDatasetID == "" {
		return nil, errors.New("upload returned no dataset id")
	}

	s.w.SetDataset(Dataset{
		ID:         res.TempDatasetID,
		Path:       abs,
		Name:       filepath.Base(abs),
		RowCount:   res.RowCount,
		Schema:     res.Schema,
		SampleRows: res.Rows(),
	})
	s.logger.Info("dataset uploaded", "dataset", res.TempDatasetID, "rows", res.RowCount, "columns", len(res.Schema))
	return res, s.save(ctx)
}

// TestFilter evaluates the current filter on the server and records the
// result, which satisfies the audience step's guard.
func (s *Session) TestFilter(ctx context.Context) (*core.FilterResult, error) {
	ds := s.w.Dataset()
	if ds == nil {
		return nil, &GuardError{Step: StepUploadData, Reason: "upload a dataset first"}
	}
	if _, err := os.Stat(ds.Path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetFileMissing, ds.Path)
	}

	payload, err := s.w.Filter().Payload()
	if err != nil {
		return nil, err
	}
	res, err := s.backend.TestFilter(ctx, ds.Path, payload)
	if err != nil {
		return nil, err
	}

	s.w.Filter().MarkTested(*res)
	s.logger.Info("filter tested", "matched", res.MatchedCount)
	return res, s.save(ctx)
}

// AddCondition appends a default condition.
func (s *Session) AddCondition(ctx context.Context) (audience.Condition, error) {
	c, err := s.w.Filter().AddCondition()
	if err != nil {
		return audience.Condition{}, err
	}
	return c, s.save(ctx)
}

// UpdateCondition changes one field of a condition.
func (s *Session) UpdateCondition(ctx context.Context, id string, field audience.Field, value string) error {
	if err := s.w.Filter().UpdateCondition(id, field, value); err != nil {
		return err
	}
	return s.save(ctx)
}

// RemoveCondition deletes a condition.
func (s *Session) RemoveCondition(ctx context.Context, id string) error {
	if err := s.w.Filter().RemoveCondition(id); err != nil {
		return err
	}
	return s.save(ctx)
}

// SetLogic sets how conditions combine.
func (s *Session) SetLogic(ctx context.Context, logic core.FilterLogic) error {
	if err := s.w.Filter().SetLogic(logic); err != nil {
		return err
	}
	return s.save(ctx)
}

// SetName sets the template name.
func (s *Session) SetName(ctx context.Context, name string) error {
	s.w.SetName(name)
	return s.save(ctx)
}

// SetDescription sets the template description.
func (s *Session) SetDescription(ctx context.Context, desc string) error {
	s.w.SetDescription(desc)
	return s.save(ctx)
}

// Compose replaces the message with placeholder text. Every placeholder
// must name a dataset column.
func (s *Session) Compose(ctx context.Context, text string) error {
	schema := s.w.Schema()
	if err := composer.ValidateVariables(text, schema); err != nil {
		return err
	}
	s.w.SetDocument(composer.Parse(text, schema))
	return s.save(ctx)
}

// ImportHTML replaces the message with a document converted from editor
// markup. Pills naming unknown columns are rejected like typed placeholders.
func (s *Session) ImportHTML(ctx context.Context, markup string) error {
	schema := s.w.Schema()
	doc, err := composer.ImportHTML(markup, schema)
	if err != nil {
		return err
	}
	if err := composer.ValidateVariables(doc.Serialize(), schema); err != nil {
		return err
	}
	s.w.SetDocument(doc)
	return s.save(ctx)
}

// Edit applies fn to a copy of the document and keeps the copy when fn
// succeeds.
func (s *Session) Edit(ctx context.Context, fn func(doc *composer.Document) error) error {
	doc := s.w.Document().Clone()
	if err := fn(doc); err != nil {
		return err
	}
	s.w.SetDocument(doc)
	return s.save(ctx)
}

// Next advances one step.
func (s *Session) Next(ctx context.Context) error {
	if err := s.w.Next(); err != nil {
		return err
	}
	return s.save(ctx)
}

// Back returns to the previous step.
func (s *Session) Back(ctx context.Context) error {
	if err := s.w.Back(); err != nil {
		return err
	}
	return s.save(ctx)
}

// JumpTo moves to an earlier step.
func (s *Session) JumpTo(ctx context.Context, step Step) error {
	if err := s.w.JumpTo(step); err != nil {
		return err
	}
	return s.save(ctx)
}

// Reset deletes the draft and starts over.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.store.DeleteDraft(ctx, s.name, CacheKey); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	s.w = New()
	s.recovered = false
	return nil
}

// Submit creates the template from the review step. An untested filter sends
// the wizard back to the audience step and unknown variables to the compose
// step. On success the draft is deleted.
func (s *Session) Submit(ctx context.Context) (*core.CreateTemplateResult, error) {
	if s.w.Step() != StepReviewAndCreate {
		return nil, ErrNotReviewing
	}
	req, err := s.request()
	if err != nil {
		back := s.w.step
		var guard *GuardError
		var unknown *composer.UnknownTemplateVariableError
		switch {
		case errors.As(err, &guard):
			back = guard.Step
		case errors.As(err, &unknown):
			back = StepComposeMessage
		}
		if back < s.w.step {
			s.w.step = back
			if serr := s.save(ctx); serr != nil {
				return nil, errors.Join(err, serr)
			}
		}
		return nil, err
	}

	res, err := s.backend.CreateTemplate(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("template created", "logical_id", res.LogicalID, "version", res.Version)

	if err := s.store.DeleteDraft(ctx, s.name, CacheKey); err != nil {
		return res, fmt.Errorf("template created but failed to delete draft: %w", err)
	}
	s.w = New()
	s.recovered = false
	return res, nil
}

func (s *Session) request() (*core.CreateTemplateRequest, error) {
	ds := s.w.Dataset()
	if ds == nil || ds.ID == "" {
		return nil, &GuardError{Step: StepUploadData, Reason: "upload a dataset first"}
	}
	if !s.w.Filter().Ready() {
		return nil, &GuardError{Step: StepTargetAudience, Reason: "the filter changed since it was tested; test it again or remove all conditions"}
	}
	if s.w.Name() == "" {
		return nil, &GuardError{Step: StepComposeMessage, Reason: "template name is required"}
	}
	body := s.w.Body()
	if body == "" {
		return nil, &GuardError{Step: StepComposeMessage, Reason: "message body is required"}
	}
	if err := composer.ValidateVariables(body, ds.Schema); err != nil {
		return nil, err
	}

	filter, err := s.w.Filter().Payload()
	if err != nil {
		return nil, err
	}
	desc := s.w.Description()
	if desc == "" {
		desc = DefaultDescription
	}
	return &core.CreateTemplateRequest{
		Name:          s.w.Name(),
		Description:   desc,
		TempDatasetID: ds.ID,
		Body:          body,
		Filter:        filter,
	}, nil
}

func (s *Session) save(ctx context.Context) error {
	d, err := s.w.Snapshot()
	if err != nil {
		return err
	}
	payload, err := MarshalDraft(d)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	if err := s.store.SaveDraft(ctx, s.name, CacheKey, payload); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}
