package database

// canonicalFeature is one seed entry of the fixed feature taxonomy.
// Features are seeded once per startup with INSERT OR IGNORE, updated
// only via description regeneration, and never deleted. The "general"
// entry is the catch-all for records with no recognizable category.
type canonicalFeature struct {
	ID   string
	Name string
}

var canonicalFeatures = []canonicalFeature{
	{"assignments", "Assignments"},
	{"gradebook", "Gradebook"},
	{"speedgrader", "SpeedGrader"},
	{"quizzes", "Quizzes"},
	{"discussions", "Discussions"},
	{"announcements", "Announcements"},
	{"modules", "Modules"},
	{"pages", "Pages"},
	{"files", "Files"},
	{"rich-content-editor", "Rich Content Editor"},
	{"calendar", "Calendar"},
	{"inbox", "Inbox"},
	{"courses", "Courses"},
	{"people", "People"},
	{"groups", "Groups"},
	{"outcomes", "Outcomes"},
	{"rubrics", "Rubrics"},
	{"analytics", "Analytics"},
	{"accessibility", "Accessibility"},
	{"mobile", "Mobile"},
	{"api", "API"},
	{"authentication", "Authentication"},
	{"account-settings", "Account Settings"},
	{"catalog", "Catalog"},
	{"studio", "Studio"},
	{"general", "General"},
}
