package bootstrap

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// Prefetch downloads the source archives of all tools which are not on $PATH
// concurrently, so that the sequential builds find them in the distfiles
// cache. Only the main goroutine reads the environment: lookups happen before
// any download starts.
func (bs *Bootstrapper) Prefetch(ctx context.Context) error {
	type download struct{ name, url, hash string }
	var missing []download
	for _, r := range bs.cfg.Recipes {
		if _, ok := bs.b.Resolve(r.Name); ok {
			continue
		}
		missing = append(missing, download{r.Name, r.Source, r.Hash})
	}
	eg, ctx := errgroup.WithContext(ctx)
	for _, d := range missing {
		d := d // copy
		eg.Go(func() error {
			log.Printf("prefetching %s source", d.name)
			_, err := bs.b.Fetcher.Download(ctx, d.url, d.hash)
			return err
		})
	}
	return eg.Wait()
}
