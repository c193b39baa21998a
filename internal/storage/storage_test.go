package storage

import (
	"context"
	"testing"
	"time"

	"github.com/mediprint/compositor/internal/designdata"
	"github.com/mediprint/compositor/internal/models"
	"github.com/mediprint/compositor/internal/preview"
)

func TestSessionStore(t *testing.T) {
	store := New()
	now := time.Now()
	orch := preview.New(nil, []models.Design{{ID: "a"}}, models.VariantConfig{}, preview.DefaultOptions())

	store.Set("second", &Session{ID: "second", CreatedAt: now.Add(time.Second)})
	store.Set("first", &Session{ID: "first", CreatedAt: now, Preview: orch})

	if s, ok := store.Get("first"); !ok || s.Preview != orch {
		t.Fatal("Expected session first")
	}

	all := store.GetAll()
	if len(all) != 2 || all[0].ID != "first" || all[1].ID != "second" {
		t.Errorf("Expected sessions ordered by creation, got %v", all)
	}

	if !store.Delete(context.Background(), "first") {
		t.Error("Expected delete to report an existing session")
	}
	if store.Delete(context.Background(), "first") {
		t.Error("Expected second delete to report nothing removed")
	}
	if _, ok := store.Get("first"); ok {
		t.Error("Expected session removed")
	}

	store.CloseAll(context.Background())
	if len(store.GetAll()) != 0 {
		t.Error("Expected CloseAll to empty the store")
	}
}

func TestSessionProject(t *testing.T) {
	res := &designdata.Result{
		ProjectTitle: "Cards",
		Kind:         designdata.KindFlat,
		Designs:      []models.Design{{ID: "a", Label: "Front"}},
	}
	session := &Session{
		ID:      "s",
		Result:  res,
		Preview: preview.New(nil, res.Designs, models.VariantConfig{}, preview.DefaultOptions()),
	}

	edited := models.Design{ID: "a", Label: "Front", Objects: []models.CanvasObject{{ID: "o1"}}}
	if err := session.Preview.UpdateDesign(0, edited); err != nil {
		t.Fatalf("UpdateDesign failed: %v", err)
	}

	current := session.Project()
	if current.ProjectTitle != "Cards" || current.Kind != designdata.KindFlat {
		t.Errorf("Expected project metadata kept, got %+v", current)
	}
	if len(current.Designs) != 1 || len(current.Designs[0].Objects) != 1 {
		t.Errorf("Expected edited design, got %+v", current.Designs)
	}
	if len(res.Designs[0].Objects) != 0 {
		t.Errorf("Expected parsed result untouched, got %+v", res.Designs[0])
	}
}
