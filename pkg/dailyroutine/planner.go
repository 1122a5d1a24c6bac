package dailyroutine

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/wisbric/postflow/pkg/adapters"
	"github.com/wisbric/postflow/pkg/domain"
	"github.com/wisbric/postflow/pkg/ledger"
	"github.com/wisbric/postflow/pkg/store"
)

// Planner implements the §4.8 content-mix computation and draft creation.
type Planner struct {
	opts Options
}

// NewPlanner builds a Planner from the routine's shared options.
func NewPlanner(opts Options) *Planner {
	return &Planner{opts: opts}
}

// mix holds the per-type draft counts for one planning pass.
type mix struct {
	thread, reply, quote, tweet int
}

// computeMix implements the exact §4.8 arithmetic, including the
// no-target-URLs reclaim and the reply+quote hard cap of 3 (shaved from
// quote first, then reply).
func computeMix(n int, rThread, rReply, rQuote float64, haveTargetURLs bool) mix {
	thread := minInt(n, int(float64(n)*rThread))
	reply := minInt(n-thread, int(float64(n)*rReply))
	quote := minInt(n-thread-reply, int(float64(n)*rQuote))
	tweet := n - thread - reply - quote

	if !haveTargetURLs {
		thread += reply + quote
		reply, quote = 0, 0
	}

	if reply+quote > 3 {
		excess := reply + quote - 3
		shave := minInt(excess, quote)
		quote -= shave
		excess -= shave
		reply -= minInt(excess, reply)
		tweet = n - thread - reply - quote
	}

	return mix{thread: thread, reply: reply, quote: quote, tweet: tweet}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

func stripURLs(s string) string {
	return strings.TrimSpace(urlPattern.ReplaceAllString(s, ""))
}

// Plan implements §4.8: reserves the fixed plan cost, derives facts from the
// day's search/fetch results and harvested target URLs, computes the mix,
// and creates (deduped, staggered) Post drafts for target_date+1.
func (p *Planner) Plan(ctx context.Context, led *ledger.Ledger, st Store, agentID, accountID int64, targetDate time.Time, n int, facts []adapters.SearchResult, planLLMCost float64) (int, error) {
	if err := led.Reserve(ctx, 0, planLLMCost); err != nil {
		return 0, err
	}

	scheduledDate := targetDate.AddDate(0, 0, 1)

	var targetURLs []string
	for {
		cand, err := st.NextUnusedTargetPostCandidate(ctx, agentID, targetDate)
		if err != nil {
			if err == store.ErrNotFound {
				break
			}
			return 0, err
		}
		targetURLs = append(targetURLs, cand.URL)
	}

	m := computeMix(n, p.opts.ThreadRatio, p.opts.ReplyRatio, p.opts.QuoteRatio, len(targetURLs) > 0)

	boilerplate := knowledgeBoilerplate(ctx, st, accountID)
	drafts := buildDrafts(m, agentID, targetDate, facts, targetURLs, p.opts.AllowURLForValidation, boilerplate)

	created := 0
	existingCount := 0
	for _, d := range drafts {
		hash := ContentHash(normalizeForHash(d))
		exists, err := st.ExistsByContentHash(ctx, agentID, hash, scheduledDate)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		scheduled := scheduledAt(scheduledDate, p.opts.PostHour, p.opts.PostMinute, p.opts.WorkerTZ, existingCount)
		existingCount++

		if _, err := st.CreatePost(ctx, domain.Post{
			AgentID:           agentID,
			Content:           d.content,
			Type:              d.typ,
			ThreadParts:       d.threadParts,
			TargetPostURL:     d.targetURL,
			AllowURL:          d.allowURL,
			ScheduledAt:       &scheduled,
			ContentHash:       hash,
			ContentBucketDate: scheduledDate,
		}); err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}

type draft struct {
	typ         domain.PostType
	content     string
	threadParts []string
	targetURL   string
	allowURL    bool
}

// normalizeForHash implements §4.8's hash input: lowercased,
// whitespace-collapsed concatenation of thread parts if any, else content.
func normalizeForHash(d draft) string {
	text := d.content
	if len(d.threadParts) > 0 {
		text = strings.Join(d.threadParts, " ")
	}
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

func buildDrafts(m mix, agentID int64, targetDate time.Time, facts []adapters.SearchResult, targetURLs []string, allowURL bool, boilerplate string) []draft {
	topic := fallbackTopic(facts, agentID, targetDate, boilerplate)

	var drafts []draft
	for i := 0; i < m.tweet; i++ {
		drafts = append(drafts, draft{typ: domain.PostTweet, content: stripURLs(fmt.Sprintf("%s (%d)", topic, i+1))})
	}
	for i := 0; i < m.thread; i++ {
		parts := []string{
			stripURLs(fmt.Sprintf("%s — part 1", topic)),
			stripURLs(fmt.Sprintf("%s — part 2", topic)),
		}
		drafts = append(drafts, draft{typ: domain.PostThread, content: parts[0], threadParts: parts})
	}
	for i := 0; i < m.reply && i < len(targetURLs); i++ {
		content := topic
		if !allowURL {
			content = stripURLs(content)
		}
		drafts = append(drafts, draft{typ: domain.PostReply, content: content, targetURL: targetURLs[i], allowURL: allowURL})
	}
	for i := 0; i < m.quote && m.reply+i < len(targetURLs); i++ {
		content := topic
		if !allowURL {
			content = stripURLs(content)
		}
		drafts = append(drafts, draft{typ: domain.PostQuoteRT, content: content, targetURL: targetURLs[m.reply+i], allowURL: allowURL})
	}
	return drafts
}

// fallbackTopic derives deterministic boilerplate when no search/fetch
// facts are available, per §4.8: prefer a search/fetch snippet, then the
// account's configured persona/strategy notes, then the agent_id+date
// default. Each tier is itself deterministic, so the documented
// determinism contract is unchanged.
func fallbackTopic(facts []adapters.SearchResult, agentID int64, targetDate time.Time, boilerplate string) string {
	for _, f := range facts {
		if f.Snippet != "" {
			return f.Snippet
		}
	}
	if boilerplate != "" {
		return boilerplate
	}
	return fmt.Sprintf("daily update for agent %d on %s", agentID, targetDate.Format("2006-01-02"))
}

// knowledgeBoilerplate reads the account's persona/strategy notes, if any,
// for use as fallbackTopic's middle tier. Absence is not an error: most
// accounts never configure this table.
func knowledgeBoilerplate(ctx context.Context, st Store, accountID int64) string {
	k, err := st.GetAccountKnowledge(ctx, accountID)
	if err != nil {
		return ""
	}
	switch {
	case k.Strategy != "":
		return k.Strategy
	case k.Persona != "":
		return k.Persona
	default:
		return ""
	}
}

func scheduledAt(date time.Time, hour, minute int, loc *time.Location, staggerIndex int) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	base := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, loc)
	return base.Add(time.Duration(staggerIndex) * 5 * time.Minute)
}
