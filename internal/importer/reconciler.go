package importer

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"

	"github.com/syllabooster/syllabooster/internal/model"
	"github.com/syllabooster/syllabooster/internal/outline"
	"github.com/syllabooster/syllabooster/internal/store"
)

// reconciler turns point nodes into stored points. It caches the type and
// state vocabulary for the duration of one import.
type reconciler struct {
	tx          *store.Tx
	defaultType string
	fold        cases.Caser

	types  map[string]*model.PointType
	states map[int64]map[string]*model.DeliveryState // by type, by folded name
}

func newReconciler(tx *store.Tx, defaultType string) *reconciler {
	if defaultType == "" {
		defaultType = model.DefaultPointType
	}
	return &reconciler{
		tx:          tx,
		defaultType: defaultType,
		fold:        cases.Fold(),
		types:       make(map[string]*model.PointType),
		states:      make(map[int64]map[string]*model.DeliveryState),
	}
}

// draft is a reconciled point waiting for its course placement.
type draft struct {
	point   *model.Point
	stateID *int64
	warning *Warning
}

// reconcile upserts the point named by node's heading and attaches its own
// tags plus unitTags. The heading is the identity: an existing point with
// the same heading is updated in place, whichever course it came from.
func (r *reconciler) reconcile(ctx context.Context, node *outline.Node, unitTags []string) (*draft, error) {
	typeName, ok := node.Property("TYPE")
	if !ok || strings.TrimSpace(typeName) == "" {
		typeName = r.defaultType
	}
	pt, err := r.pointType(ctx, node.Heading, strings.TrimSpace(typeName))
	if err != nil {
		return nil, err
	}

	point := &model.Point{
		Heading:     node.Heading,
		Contents:    node.Body,
		PointTypeID: pt.ID,
		Tags:        Propagate(unitTags, node.Tags),
	}
	if err := r.tx.UpsertPoint(ctx, point); err != nil {
		return nil, err
	}
	if err := r.tx.AttachTags(ctx, point.ID, point.Tags); err != nil {
		return nil, err
	}

	d := &draft{point: point}
	if node.Todo == "" {
		return d, nil
	}
	state, err := r.state(ctx, pt.ID, node.Todo)
	if err != nil {
		return nil, err
	}
	if state == nil {
		d.warning = &Warning{
			Kind:    UnknownDeliveryState,
			Heading: node.Heading,
			Detail:  "has TODO keyword " + node.Todo + " with no matching state for type " + pt.Name,
		}
		return d, nil
	}
	d.stateID = &state.ID
	return d, nil
}

// pointType resolves a type by exact name. Unknown names are fatal.
func (r *reconciler) pointType(ctx context.Context, heading, name string) (*model.PointType, error) {
	if pt, ok := r.types[name]; ok {
		return pt, nil
	}
	pt, err := r.tx.FindPointType(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &UnknownPointTypeError{Heading: heading, Type: name}
	}
	if err != nil {
		return nil, err
	}
	r.types[name] = pt
	return pt, nil
}

// state matches a TODO keyword against the states of a type, ignoring
// case. It returns nil when nothing matches.
func (r *reconciler) state(ctx context.Context, typeID int64, todo string) (*model.DeliveryState, error) {
	byName, ok := r.states[typeID]
	if !ok {
		list, err := r.tx.ListDeliveryStates(ctx, typeID)
		if err != nil {
			return nil, err
		}
		byName = make(map[string]*model.DeliveryState, len(list))
		for _, s := range list {
			byName[r.fold.String(s.Name)] = s
		}
		r.states[typeID] = byName
	}
	return byName[r.fold.String(todo)], nil
}
