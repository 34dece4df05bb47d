package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/galois26/tender-sync/internal/config"
	"github.com/galois26/tender-sync/internal/model"
)

// foreignSource queries an EU notice search API for UK notices. The payload
// shape varies between API versions, so notices are read as loose maps.
type foreignSource struct {
	base
	http    Getter
	baseURL string
	cfg     config.ForeignConfig
	now     func() time.Time
}

func (s *foreignSource) Fetch(ctx context.Context) ([]model.Notice, error) {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	q := url.Values{}
	q.Set("countryCode", s.cfg.CountryCode)
	q.Set("cpvCode", s.cfg.CPVCode)
	q.Set("noticeType", s.cfg.NoticeType)
	q.Set("pageSize", strconv.Itoa(s.cfg.PageSize))
	u := strings.TrimRight(s.baseURL, "/") + "/notices/search?" + q.Encode()

	var raw map[string]any
	if err := s.http.GetJSON(ctx, u, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	list, _ := raw["content"].([]any)
	if list == nil {
		list, _ = raw["notices"].([]any)
	}

	out := make([]model.Notice, 0, len(list))
	for i, it := range list {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, foreignNotice(m, i, now()))
	}
	return out, nil
}

func foreignNotice(m map[string]any, idx int, now time.Time) model.Notice {
	id := pickStr(m, "id", "publicationNumber", "noticeId")
	ocid := id
	if ocid == "" {
		ocid = "TED-" + now.UTC().Format("20060102") + "-" + strconv.Itoa(idx+1)
	}
	buyer := pickStr(m, "contractingAuthorityName", "buyerName")
	if buyer == "" {
		buyer = "EU Tender"
	}
	title := pickStr(m, "title", "titleEnglish")
	if title == "" {
		title = "EU Tender"
	}

	t := &model.Tender{
		ID:          id,
		Title:       title,
		Description: pickStr(m, "shortDescription", "description"),
		Status:      "active",
	}
	if v, ok := pickFloat(m, "estimatedValue"); ok {
		t.Value = &model.Value{Amount: v, Currency: "GBP"}
	}
	for i, c := range cpvList(m["cpvCodes"]) {
		t.Items = append(t.Items, model.Item{
			ID:             strconv.Itoa(i + 1),
			Classification: &model.Classification{Scheme: "CPV", ID: c},
		})
	}
	if dl := pickStr(m, "deadline", "submissionDeadline"); dl != "" {
		t.TenderPeriod = &model.Period{EndDate: dl}
	}

	date := pickStr(m, "publicationDate")
	if date == "" {
		date = now.UTC().Format(time.RFC3339)
	}
	return model.Notice{
		OCID:    ocid,
		ID:      id,
		Date:    date,
		Tag:     []string{"tender"},
		Parties: []model.Party{buyerParty(buyer, nil)},
		Tender:  t,
	}
}

// cpvList accepts ["45310000", ...] or [{"code": "45310000"}, ...].
func cpvList(v any) []string {
	arr, _ := v.([]any)
	var out []string
	for _, e := range arr {
		switch t := e.(type) {
		case string:
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		case map[string]any:
			if c := pickStr(t, "code", "id"); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}
