package objfs

import (
	"context"

	"github.com/koustreak/bucketfs/internal/filestore"
	"golang.org/x/sync/errgroup"
)

const (
	delimiter    = "/"
	listPageSize = filestore.DefaultMaxKeys
)

// DirListing is the flattened result of a directory listing.
type DirListing struct {
	// Objects holds every object found, each annotated with the prefix
	// it was listed under.
	Objects []filestore.ObjectInfo

	// Prefixes holds the common prefixes encountered, in traversal order.
	Prefixes []string
}

// ListDirObjects pages through the delimiter listing of dirPrefix until the
// provider stops returning a marker. When recursive is set every common
// prefix is listed in turn and its objects appended in prefix order.
// Sibling prefixes are listed concurrently up to Settings.ListConcurrency;
// the first failing branch aborts the listing. Provider errors are returned
// unchanged.
func (a *Adapter) ListDirObjects(ctx context.Context, dirPrefix string, recursive bool) (*DirListing, error) {
	out, err := a.listPages(ctx, dirPrefix)
	if err != nil {
		return nil, err
	}
	if !recursive || len(out.Prefixes) == 0 {
		return out, nil
	}

	children := make([]*DirListing, len(out.Prefixes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.settings.ListConcurrency)
	for i, prefix := range out.Prefixes {
		g.Go(func() error {
			sub, err := a.ListDirObjects(gctx, prefix, true)
			if err != nil {
				return err
			}
			children[i] = sub
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, sub := range children {
		out.Objects = append(out.Objects, sub.Objects...)
		out.Prefixes = append(out.Prefixes, sub.Prefixes...)
	}
	return out, nil
}

func (a *Adapter) listPages(ctx context.Context, dirPrefix string) (*DirListing, error) {
	out := &DirListing{}
	marker := ""
	for {
		page, err := a.client.ListObjects(ctx, a.settings.Bucket, filestore.ListOptions{
			Prefix:    dirPrefix,
			Delimiter: delimiter,
			MaxKeys:   listPageSize,
			Marker:    marker,
		})
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Objects {
			obj.Prefix = dirPrefix
			out.Objects = append(out.Objects, obj)
		}
		out.Prefixes = append(out.Prefixes, page.CommonPrefixes...)
		a.log.DebugWith("listed page", map[string]interface{}{
			"prefix":   dirPrefix,
			"marker":   marker,
			"objects":  len(page.Objects),
			"prefixes": len(page.CommonPrefixes),
		})

		if page.NextMarker == "" {
			return out, nil
		}
		marker = page.NextMarker
	}
}
