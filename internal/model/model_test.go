package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in     string
		want   Category
		wantOK bool
	}{
		{"report", CategoryReport, true},
		{"Report", CategoryReport, true},
		{"  BILL ", CategoryBill, true},
		{"insurance", CategoryInsurance, true},
		{"", CategoryOther, true},
		{"xray", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseCategory(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroupDocuments(t *testing.T) {
	docs := []Document{
		{ID: "1", Category: CategoryBill, MimeType: "application/pdf"},
		{ID: "2", Category: "legacy-thing"},
		{ID: "3", Category: "report"},
		{ID: "4", Category: CategoryBill},
	}

	g := GroupDocuments(docs, func(d Document) string { return "/d/" + d.ID })

	assert.Len(t, g.Records, len(Categories))
	assert.Equal(t, 2, g.Counts[CategoryBill])
	assert.Equal(t, 1, g.Counts[CategoryOther])
	assert.Equal(t, 1, g.Counts[CategoryReport])
	assert.Equal(t, 0, g.Counts[CategoryInsurance])
	assert.NotNil(t, g.Records[CategoryPrescription])
	assert.Equal(t, "1", g.Records[CategoryBill][0].ID)
	assert.Equal(t, "4", g.Records[CategoryBill][1].ID)
	assert.Equal(t, "pdf", g.Records[CategoryBill][0].FileType)
	assert.Equal(t, "/d/2", g.Records[CategoryOther][0].URL)
}

func TestDocumentFileType(t *testing.T) {
	assert.Equal(t, "pdf", Document{MimeType: "application/pdf"}.FileType())
	assert.Equal(t, "plain", Document{MimeType: "text/plain; charset=utf-8"}.FileType())
	assert.Equal(t, "file", Document{}.FileType())
}

func TestShareSessionRedeemable(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := ShareSession{Status: ShareStatusActive, ExpiresAt: now.Add(time.Second)}
	assert.True(t, s.Redeemable(now))
	assert.False(t, s.Redeemable(now.Add(time.Second)))

	s.Status = ShareStatusExpired
	assert.False(t, s.Redeemable(now))
}
