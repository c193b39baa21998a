package placement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mediprint/compositor/internal/geometry"
	"github.com/mediprint/compositor/internal/ingest"
	"github.com/mediprint/compositor/internal/models"
)

// ErrObjectNotFound is returned by Remove for an unknown object id.
var ErrObjectNotFound = errors.New("object not found")

// Ingestor is the asset-ingestion collaborator.
type Ingestor interface {
	Upload(ctx context.Context, files []ingest.File) (ingest.UploadResult, error)
	Delete(ctx context.Context, originalURL, previewURL string) error
}

// Adapter turns uploaded files into image objects on a design.
type Adapter struct {
	ingestor Ingestor
	newID    func() string
}

// NewAdapter creates an adapter backed by ingestor.
func NewAdapter(ingestor Ingestor) *Adapter {
	return &Adapter{
		ingestor: ingestor,
		newID:    func() string { return uuid.New().String() },
	}
}

// Insert uploads files and appends one image object per ingested asset,
// each placed into target. Assets come back in upload order and receive
// strictly increasing z-indexes above the existing objects. Upload errors for
// individual files are returned alongside the objects that were created.
func (a *Adapter) Insert(ctx context.Context, design *models.Design, files []ingest.File, target geometry.Rect, mode FitMode) ([]models.CanvasObject, []ingest.FileError, error) {
	res, err := a.ingestor.Upload(ctx, files)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upload assets: %w", err)
	}

	created := make([]models.CanvasObject, 0, len(res.Assets))
	for _, asset := range res.Assets {
		item := ToAssetItem(asset)
		obj := a.NewImageObject(item, ComputeDefaultImagePlacement(
			geometry.Size{Width: float64(item.Width), Height: float64(item.Height)}, target, mode))
		obj.ZIndex = design.NextZIndex()
		design.Objects = append(design.Objects, obj)
		created = append(created, obj)
	}

	slog.Info("Assets inserted", "design_id", design.ID, "objects", len(created), "errors", len(res.Errors))
	return created, res.Errors, nil
}

// InsertSpread uploads files and places each asset on one page of a spread,
// or across both pages when side is SideNone. page is the size of a single
// page. The objects are returned in spread coordinates with z-indexes
// counting up from z; the caller splits them onto its pages.
func (a *Adapter) InsertSpread(ctx context.Context, files []ingest.File, page geometry.Size, side models.Side, mode FitMode, z int) ([]models.CanvasObject, []ingest.FileError, error) {
	res, err := a.ingestor.Upload(ctx, files)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upload assets: %w", err)
	}

	created := make([]models.CanvasObject, 0, len(res.Assets))
	for i, asset := range res.Assets {
		item := ToAssetItem(asset)
		obj := a.NewImageObject(item, ComputeSpreadImagePlacement(
			geometry.Size{Width: float64(item.Width), Height: float64(item.Height)}, page, side, mode))
		obj.ZIndex = z + i
		created = append(created, obj)
	}

	slog.Info("Assets inserted on spread", "side", side, "objects", len(created), "errors", len(res.Errors))
	return created, res.Errors, nil
}

// NewImageObject materializes an image object from an asset and a placement.
func (a *Adapter) NewImageObject(item models.AssetItem, p Placement) models.CanvasObject {
	obj := models.CanvasObject{
		ID:      a.newID(),
		Type:    models.ObjectImage,
		Src:     item.URL,
		FullSrc: item.FullURL,
	}
	p.Apply(&obj)
	return obj
}

// Remove deletes an object from the design. With cascade, the underlying
// image asset is deleted through the ingestor as well.
func (a *Adapter) Remove(ctx context.Context, design *models.Design, objectID string, cascade bool) error {
	idx := -1
	for i, o := range design.Objects {
		if o.ID == objectID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, objectID)
	}

	obj := design.Objects[idx]
	design.Objects = append(design.Objects[:idx], design.Objects[idx+1:]...)

	if cascade && obj.Type == models.ObjectImage && (obj.FullSrc != "" || obj.Src != "") {
		if err := a.ingestor.Delete(ctx, obj.FullSrc, obj.Src); err != nil {
			return fmt.Errorf("object removed but asset delete failed: %w", err)
		}
	}
	return nil
}

// ToAssetItem converts an ingested asset into the design model's form.
func ToAssetItem(a ingest.Asset) models.AssetItem {
	return models.AssetItem{
		ID:      a.ID,
		URL:     a.URL,
		FullURL: a.FullURL,
		Width:   a.Width,
		Height:  a.Height,
	}
}
