package draft

import (
	"context"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/draftsync"
)

// RemoteAdapter exposes the service through the draft store contract the
// editor core and the public pages consume.
type RemoteAdapter struct {
	svc *Service
	// OnSaved runs after a save that changed the stored draft.
	OnSaved func(ctx context.Context, d *models.DraftModel)
}

func NewRemoteAdapter(svc *Service) *RemoteAdapter {
	return &RemoteAdapter{svc: svc}
}

var _ draftsync.RemoteStore = (*RemoteAdapter)(nil)

func (r *RemoteAdapter) Load(ctx context.Context, id string) (*draftsync.LoadedDraft, error) {
	d, err := r.svc.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return Loaded(d), nil
}

func (r *RemoteAdapter) Save(ctx context.Context, req draftsync.SaveRequest) (draftsync.SaveResult, error) {
	res, err := r.svc.Save(ctx, SaveInput(req))
	if err != nil {
		return draftsync.SaveResult{}, err
	}
	if res.Changed && r.OnSaved != nil {
		r.OnSaved(ctx, res.Draft)
	}
	return draftsync.SaveResult{
		ID:      res.Draft.ID,
		Version: res.Draft.Version,
		Created: res.Created,
	}, nil
}

// Loaded converts a stored draft to the load-draft contract.
func Loaded(d *models.DraftModel) *draftsync.LoadedDraft {
	return &draftsync.LoadedDraft{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Blocks:      models.CloneBlocks(d.Blocks),
		Locked:      d.Locked,
		Status:      d.Status,
		CoAuthorID:  d.CoAuthorID,
		CategoryID:  d.CategoryID,
	}
}
