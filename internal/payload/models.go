package payload

import (
	"strings"

	"blackwatch/internal/models"
)

// ChallengeInitRequest opens a login challenge.
type ChallengeInitRequest struct {
	ClientID string `json:"clientId"`
}

// ChallengeInitResponse carries the nonce to sign.
type ChallengeInitResponse struct {
	ChallengeID string `json:"challengeId"`
	Nonce       string `json:"nonce"`
	TTL         int    `json:"ttl"`
}

// VerifyRequest answers a challenge with the signed nonce.
type VerifyRequest struct {
	ClientID    string `json:"clientId"`
	ChallengeID string `json:"challengeId"`
	Signature   string `json:"signature"`
}

// VerifyResponse is returned once a session is granted.
type VerifyResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// VulnerabilityPayload is the body accepted by the vulnerability route.
// CVE ids and the score travel as flat strings.
type VulnerabilityPayload struct {
	ClientID              string   `json:"clientId"`
	Host                  string   `json:"host"`
	Path                  string   `json:"path"`
	Title                 string   `json:"title"`
	Author                string   `json:"author"`
	UploadDate            string   `json:"uploadDate"`
	CVEIDs                string   `json:"cveIds"`
	CVSS                  string   `json:"cvss"`
	VulnerabilityClass    []string `json:"vulnerabilityClass"`
	Products              []string `json:"products"`
	ExploitationTechnique []string `json:"exploitationTechnique"`
	Article               string   `json:"article"`
	Ref                   []string `json:"ref"`
}

// LeakedPayload is the body accepted by the leak route. The server rejects
// an empty list.
type LeakedPayload struct {
	Leaked []models.LeakRecord `json:"leaked"`
}

// NewVulnerabilityPayload maps a record onto the wire shape.
func NewVulnerabilityPayload(rec *models.CandidateRecord) VulnerabilityPayload {
	cves := models.None
	if !models.IsNoneList(rec.CVEIDs) {
		cves = strings.Join(rec.CVEIDs, ", ")
	}

	return VulnerabilityPayload{
		ClientID:              rec.ClientID,
		Host:                  rec.Host,
		Path:                  rec.Path,
		Title:                 orNone(rec.Title),
		Author:                orNone(rec.Author),
		UploadDate:            orNone(rec.UploadDate),
		CVEIDs:                cves,
		CVSS:                  rec.CVSS.String(),
		VulnerabilityClass:    listOrNone(rec.VulnerabilityClass),
		Products:              listOrNone(rec.AffectedProducts),
		ExploitationTechnique: listOrNone(rec.ExploitationTechnique),
		Article:               orNone(rec.Article),
		Ref:                   listOrNone(rec.Ref),
	}
}

func orNone(s string) string {
	if models.IsNone(s) {
		return models.None
	}

	return s
}

func listOrNone(list []string) []string {
	if models.IsNoneList(list) {
		return models.NoneList()
	}

	return list
}
