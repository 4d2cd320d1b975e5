package models

// LeakedData summarizes the credentials found in a leak file.
type LeakedData struct {
	Emails        []string `json:"emails"`
	EmailCount    int      `json:"emailCount"`
	Usernames     []string `json:"usernames"`
	UsernameCount int      `json:"usernameCount"`
	FileName      string   `json:"fileName"`
	SHA256        string   `json:"sha256"`
}

// LeakRecord is a leak-channel post built without the section parser.
type LeakRecord struct {
	ClientID   string     `json:"clientId"`
	Host       string     `json:"host"`
	Path       string     `json:"path"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	UploadDate string     `json:"uploadDate"`
	Article    string     `json:"article"`
	Ref        []string   `json:"ref"`
	Leaked     LeakedData `json:"leaked"`
}

// Candidate projects the leak into a CandidateRecord so that several posts
// of the same file can be clustered together with advisories.
func (l *LeakRecord) Candidate() CandidateRecord {
	title := l.Title
	if IsNone(title) {
		title = l.Leaked.FileName
	}

	return CandidateRecord{
		ClientID:              l.ClientID,
		Host:                  l.Host,
		Path:                  l.Path,
		Title:                 title,
		Author:                l.Author,
		UploadDate:            l.UploadDate,
		CVEIDs:                NoneList(),
		VulnerabilityClass:    NoneList(),
		AffectedProducts:      NoneList(),
		ExploitationTechnique: NoneList(),
		Article:               l.Article,
		Ref:                   l.Ref,
		DedupHash:             l.Leaked.SHA256,
		Tags:                  []string{"leak"},
	}
}
