package metadata

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/logger"
	"github.com/fmuoria/recruitment-scoring/internal/models"
)

const maxConcurrentFetches = 8

// NodeFetcher returns the metadata children of parentID (0 for headings)
type NodeFetcher interface {
	FetchNodes(ctx context.Context, advertisementID, parentID int64) ([]models.MetadataNode, error)
}

// OptionFetcher returns a dropdown option list
type OptionFetcher interface {
	FetchOptions(ctx context.Context, queryID int64, filters map[string]string) ([]models.Option, error)
}

// Loader assembles heading → subheading → parameter trees
type Loader struct {
	nodes   NodeFetcher
	options OptionFetcher
	log     *logger.Logger
}

// NewLoader creates a new loader
func NewLoader(nodes NodeFetcher, options OptionFetcher, log *logger.Logger) *Loader {
	return &Loader{
		nodes:   nodes,
		options: options,
		log:     log.With("component", "MetadataLoader"),
	}
}

// Load fetches one heading with its subheadings, parameters and option lists.
// It returns only after every fetch finished. filters are passed to every
// option-list query.
func (l *Loader) Load(ctx context.Context, advertisementID, headingID int64, filters map[string]string) (*models.Tree, error) {
	ctx, span := otel.Tracer("recruitment-scoring/metadata").Start(ctx, "metadata.Load")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("advertisement_id", advertisementID),
		attribute.Int64("heading_id", headingID),
	)

	heading, err := l.loadHeading(ctx, advertisementID, headingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	subs, err := l.nodes.FetchNodes(ctx, advertisementID, headingID)
	if err != nil {
		span.RecordError(err)
		return nil, apperr.Wrap(apperr.KindMetadataIncomplete, err, "failed to fetch subheadings of heading %d", headingID)
	}
	if len(subs) == 0 {
		return nil, apperr.New(apperr.KindMetadataIncomplete, "heading %d has no subheadings", headingID)
	}
	for i := range subs {
		if subs[i].ParentID != headingID {
			return nil, apperr.New(apperr.KindMetadataIncomplete,
				"subheading %d references parent %d, expected %d", subs[i].ID, subs[i].ParentID, headingID)
		}
		subs[i].Kind = models.KindSubheading
	}
	sortNodes(subs)

	tree := &models.Tree{
		AdvertisementID: advertisementID,
		Heading:         heading,
		Subheadings:     make([]models.SubheadingNode, len(subs)),
	}
	for i, s := range subs {
		tree.Subheadings[i] = models.SubheadingNode{MetadataNode: s}
	}

	if err := l.loadParameters(ctx, tree); err != nil {
		span.RecordError(err)
		return nil, err
	}
	l.loadOptions(ctx, tree, filters)

	l.log.Debug("Metadata tree loaded",
		"advertisement_id", advertisementID,
		"heading_id", headingID,
		"subheadings", len(tree.Subheadings),
		"unavailable_options", len(tree.UnavailableOptions),
	)
	return tree, nil
}

func (l *Loader) loadHeading(ctx context.Context, advertisementID, headingID int64) (models.MetadataNode, error) {
	rows, err := l.nodes.FetchNodes(ctx, advertisementID, 0)
	if err != nil {
		return models.MetadataNode{}, apperr.Wrap(apperr.KindMetadataIncomplete, err, "failed to fetch heading %d", headingID)
	}
	for _, n := range rows {
		if n.ID == headingID {
			n.Kind = models.KindHeading
			return n, nil
		}
	}
	return models.MetadataNode{}, apperr.New(apperr.KindMetadataIncomplete,
		"heading %d not found for advertisement %d", headingID, advertisementID)
}

func (l *Loader) loadParameters(ctx context.Context, tree *models.Tree) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for i := range tree.Subheadings {
		sub := &tree.Subheadings[i]
		g.Go(func() error {
			params, err := l.nodes.FetchNodes(gctx, tree.AdvertisementID, sub.ID)
			if err != nil {
				return apperr.Wrap(apperr.KindMetadataIncomplete, err, "failed to fetch parameters of subheading %d", sub.ID)
			}
			for j := range params {
				if params[j].ParentID != sub.ID {
					return apperr.New(apperr.KindMetadataIncomplete,
						"parameter %d references parent %d, expected %d", params[j].ID, params[j].ParentID, sub.ID)
				}
				params[j].Kind = models.KindParameter
			}
			sortNodes(params)
			sub.Parameters = make([]models.ParameterNode, len(params))
			for j, p := range params {
				sub.Parameters[j] = models.ParameterNode{MetadataNode: p}
			}
			return nil
		})
	}
	return g.Wait()
}

// loadOptions never fails: a broken lookup leaves that dropdown empty.
func (l *Loader) loadOptions(ctx context.Context, tree *models.Tree, filters map[string]string) {
	type slot struct {
		param *models.ParameterNode
		ok    bool
	}
	var slots []*slot
	for i := range tree.Subheadings {
		for j := range tree.Subheadings[i].Parameters {
			p := &tree.Subheadings[i].Parameters[j]
			if p.Control == models.ControlDropdown && p.OptionListID != 0 {
				slots = append(slots, &slot{param: p})
			}
		}
	}
	if len(slots) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for _, s := range slots {
		g.Go(func() error {
			opts, err := l.options.FetchOptions(ctx, s.param.OptionListID, filters)
			if err != nil {
				l.log.Warn("Option list unavailable",
					"kind", apperr.KindOptionListUnavailable,
					"parameter_id", s.param.ID,
					"query_id", s.param.OptionListID,
					"error", err,
				)
				s.param.Options = []models.Option{}
				return nil
			}
			if opts == nil {
				opts = []models.Option{}
			}
			s.param.Options = opts
			s.ok = true
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range slots {
		if !s.ok {
			tree.UnavailableOptions = append(tree.UnavailableOptions, s.param.ID)
		}
	}
	sort.Slice(tree.UnavailableOptions, func(i, j int) bool {
		return tree.UnavailableOptions[i] < tree.UnavailableOptions[j]
	})
}

func sortNodes(nodes []models.MetadataNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].DisplayOrder != nodes[j].DisplayOrder {
			return nodes[i].DisplayOrder < nodes[j].DisplayOrder
		}
		return nodes[i].ID < nodes[j].ID
	})
}
