// Package assemble gathers page rasters, page metadata and OCR token data for
// one or more source documents and zips them into the ordered page-record
// sequence the overlay renderer consumes.
package assemble

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/docexport/api"
	"github.com/wudi/docexport/observability"
	"github.com/wudi/docexport/overlay"
)

const (
	defaultChunkSize   = 20
	defaultConcurrency = 4
)

// SourceDocument describes one input document: the primary annotation or a
// related one. Pages lists the page resource URLs in display order.
type SourceDocument struct {
	ID    int64    `json:"id"`
	URL   string   `json:"url"`
	Pages []string `json:"pages"`
}

// ConsistencyError reports that the OCR side channel returned a different
// page count than the document declares. The pipeline aborts; truncating or
// padding would silently misalign rasters and token lists.
type ConsistencyError struct {
	DocumentURL string
	Declared    int
	Received    int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("assemble: %s declares %d pages but OCR data has %d",
		e.DocumentURL, e.Declared, e.Received)
}

// Assembler fetches page data through the API client. Chunked OCR requests
// respect the upstream page_numbers size limit; page content and metadata
// fetches run with bounded concurrency and are re-ordered back into input
// order before the records are returned.
type Assembler struct {
	client      *api.Client
	log         observability.Logger
	chunkSize   int
	concurrency int
}

type Option func(*Assembler)

func WithLogger(log observability.Logger) Option {
	return func(a *Assembler) { a.log = log }
}

func WithChunkSize(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}

func WithConcurrency(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

func NewAssembler(client *api.Client, opts ...Option) *Assembler {
	a := &Assembler{
		client:      client,
		log:         observability.NopLogger{},
		chunkSize:   defaultChunkSize,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type ocrItem struct {
	Text     string     `json:"text"`
	Position [4]float64 `json:"position"`
}

type ocrPage struct {
	Items []ocrItem `json:"items"`
}

type pageDataResponse struct {
	Results []ocrPage `json:"results"`
}

type pageMeta struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Assemble returns one page record per source page, spanning all documents in
// input order with pages in their declared order. Documents already seen by
// URL are skipped so consolidation callers can pass the primary document and
// its relations without pre-filtering.
func (a *Assembler) Assemble(ctx context.Context, docs []SourceDocument) ([]overlay.PageRecord, error) {
	start := time.Now()

	type pageJob struct {
		url    string
		tokens []overlay.Token
	}
	var jobs []pageJob

	seen := map[string]bool{}
	for _, doc := range docs {
		if doc.URL == "" {
			return nil, fmt.Errorf("assemble: document %d has no URL", doc.ID)
		}
		if seen[doc.URL] {
			continue
		}
		seen[doc.URL] = true

		ocrPages, err := a.fetchTokens(ctx, doc)
		if err != nil {
			return nil, err
		}
		if len(ocrPages) != len(doc.Pages) {
			return nil, &ConsistencyError{
				DocumentURL: doc.URL,
				Declared:    len(doc.Pages),
				Received:    len(ocrPages),
			}
		}
		for i, pageURL := range doc.Pages {
			jobs = append(jobs, pageJob{url: pageURL, tokens: ocrPages[i]})
		}
	}

	records := make([]overlay.PageRecord, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			content, err := a.client.GetBinary(gctx, job.url+"/content")
			if err != nil {
				return err
			}
			var meta pageMeta
			if err := a.client.GetJSON(gctx, job.url, nil, &meta); err != nil {
				return err
			}
			records[i] = overlay.PageRecord{
				Content: content,
				Width:   meta.Width,
				Height:  meta.Height,
				Tokens:  job.tokens,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.log.Info("assembled pages",
		observability.Int("documents", len(docs)),
		observability.Int(observability.MetricPageCount, len(records)),
		observability.Float64(observability.MetricAssembleTime, time.Since(start).Seconds()))
	return records, nil
}

// fetchTokens retrieves the document's OCR line data in page-number chunks
// and flattens the chunk results, one token list per page, in page order.
func (a *Assembler) fetchTokens(ctx context.Context, doc SourceDocument) ([][]overlay.Token, error) {
	var pages [][]overlay.Token
	for _, chunk := range chunkRanges(len(doc.Pages), a.chunkSize) {
		query := url.Values{
			"granularity":  {"lines"},
			"page_numbers": {joinInts(chunk)},
		}
		var resp pageDataResponse
		if err := a.client.GetJSON(ctx, doc.URL+"/page_data", query, &resp); err != nil {
			return nil, err
		}
		for _, page := range resp.Results {
			tokens := make([]overlay.Token, 0, len(page.Items))
			for _, item := range page.Items {
				tokens = append(tokens, overlay.Token{
					Text: item.Text,
					Box: overlay.BoundingBox{
						X0: item.Position[0],
						Y0: item.Position[1],
						X1: item.Position[2],
						Y1: item.Position[3],
					},
				})
			}
			pages = append(pages, tokens)
		}
	}
	return pages, nil
}

// chunkRanges partitions page numbers 1..n into contiguous runs of at most
// size entries.
func chunkRanges(n, size int) [][]int {
	var chunks [][]int
	for start := 1; start <= n; start += size {
		end := start + size
		if end > n+1 {
			end = n + 1
		}
		chunk := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			chunk = append(chunk, i)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
