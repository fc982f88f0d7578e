package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/matsen/trawl/internal/fulltext"
	"github.com/matsen/trawl/internal/record"
)

// maxEnriched caps how many records get full-text retrieval. Full
// text is slow (download plus PDF extraction) and only the strongest
// records justify it.
const maxEnriched = 10

// enrichWithFullText attaches full text to the top records in place.
// Records are processed sequentially to stay polite to the open-access
// providers. Full text is only kept when it is longer than the
// abstract already in hand.
func enrichWithFullText(ctx context.Context, provider TextProvider, records []record.CandidateRecord, logger *zap.Logger) {
	limit := maxEnriched
	if len(records) < limit {
		limit = len(records)
	}

	for i := 0; i < limit; i++ {
		r := &records[i]
		if r.IsTrial() {
			// Trials carry protocol summaries, not publisher PDFs.
			continue
		}

		result, err := provider.FullText(ctx, r.PMID(), r.DOI, "")
		if err != nil {
			logger.Warn("full-text retrieval failed",
				zap.String("id", r.ExternalID),
				zap.Error(err))
			continue
		}
		if result == nil || result.CharCount <= len(r.Abstract) {
			continue
		}

		r.FullText = fulltext.Truncate(result.Text, fulltext.MaxTextChars)
		r.FullTextSource = result.Source
		r.HasFullText = true
	}
}
