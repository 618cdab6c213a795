package model

// ContentKey discriminates logical resource types stored in the shared content table.
type ContentKey string

const (
	KeyCommunityInfo   ContentKey = "community-info"
	KeyDonationMethods ContentKey = "donation-methods"
	KeyEvents          ContentKey = "events"
	KeyMediaCategories ContentKey = "media-categories"
	KeyMediaItems      ContentKey = "media-items"
	KeyProjectProgress ContentKey = "project-progress"
	KeySocialLinks     ContentKey = "social-links"
)

// AllContentKeys lists every key the site reads.
var AllContentKeys = []ContentKey{
	KeyCommunityInfo,
	KeyDonationMethods,
	KeyEvents,
	KeyMediaCategories,
	KeyMediaItems,
	KeyProjectProgress,
	KeySocialLinks,
}

// ContentRow is one row of the content table. Value carries the resource
// payload, usually a list of records or a single document.
type ContentRow[T any] struct {
	ID        any    `json:"id,omitempty"`
	Key       string `json:"key"`
	Value     T      `json:"value"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type CommunityInfo struct {
	About       string `json:"about"`
	Vision      string `json:"vision"`
	Mission     string `json:"mission"`
	MemberCount int    `json:"memberCount"`
	Offers      []struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"offers"`
	Values []struct {
		ID          string `json:"id"`
		Icon        string `json:"icon"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"values"`
	Contact struct {
		Emails  []string `json:"emails"`
		Phones  []string `json:"phones"`
		Address struct {
			City       string `json:"city"`
			Street     string `json:"street"`
			Country    string `json:"country"`
			Address1   string `json:"address1"`
			Address2   string `json:"address2"`
			Province   string `json:"province"`
			PostalCode string `json:"postalCode"`
		} `json:"address"`
		Location string `json:"location"`
	} `json:"contact"`
	WeeklyPrograms []struct {
		ID          string `json:"id"`
		Day         string `json:"day"`
		Name        string `json:"name"`
		Time        string `json:"time"`
		Description string `json:"description"`
	} `json:"weeklyPrograms"`
}

type DonationMethod struct {
	ID           string `json:"id"`
	Link         string `json:"link,omitempty"`
	Type         string `json:"type"`
	Email        string `json:"email,omitempty"`
	Title        string `json:"title"`
	IsActive     bool   `json:"isActive"`
	AccountInfo  string `json:"accountInfo,omitempty"`
	Description  string `json:"description,omitempty"`
	DisplayOrder int    `json:"displayOrder"`
	Instructions string `json:"instructions,omitempty"`
}

type Speaker struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Bio   string `json:"bio"`
}

const EventRecurring = "recurring"

type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DateTime    string    `json:"dateTime"`
	Location    string    `json:"location"`
	Tags        []string  `json:"tags"`
	Type        string    `json:"type"`
	Frequency   string    `json:"frequency,omitempty"`
	Category    string    `json:"category,omitempty"`
	IsFeatured  bool      `json:"isFeatured"`
	Speakers    []Speaker `json:"speakers,omitempty"`
}

type MediaItem struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Title       string `json:"title"`
	MediaLink   string `json:"mediaLink"`
	MediaType   string `json:"mediaType"`
	CategoryID  string `json:"categoryId"`
	Description string `json:"description"`
	IsFeatured  bool   `json:"isFeatured,omitempty"`
}

type MediaCategory struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ProjectGoal struct {
	ID          string `json:"id"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Completed   bool   `json:"completed"`
	Description string `json:"description"`
}

type ProjectProgress struct {
	Goals              []ProjectGoal `json:"goals"`
	Raised             float64       `json:"raised"`
	Target             float64       `json:"target"`
	Vision             string        `json:"vision"`
	Mission            string        `json:"mission"`
	Timeline           string        `json:"timeline"`
	Contributors       int           `json:"contributors"`
	TimelineDate       string        `json:"timelineDate"`
	PrayerCapacity     int           `json:"prayerCapacity"`
	VolunteerHours     int           `json:"volunteerHours"`
	ConstructionPhases []any         `json:"constructionPhases"`
}

type SocialLink struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Link         string `json:"link"`
	Title        string `json:"title"`
	PlatformName string `json:"platform_name,omitempty"`
	IsActive     bool   `json:"isActive"`
	DisplayOrder int    `json:"displayOrder"`
}
