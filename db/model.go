package db

import "time"

// ===========================
// PROFILE MODELS
// ===========================

// Profile is the persisted record backing role resolution. One row per
// authenticated principal, keyed by the Supabase user ID.
type Profile struct {
	ID        string    `json:"id"` // Supabase auth user ID (sub claim)
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Branch    string    `json:"branch,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"` // public, execom, treasurer, faculty, admin
	AvatarURL string    `json:"avatar_url,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Branch   *string `json:"branch,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// ===========================
// EVENT MODELS
// ===========================

// Event is a chapter event (workshop, talk, competition).
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Venue       string     `json:"venue"`
	PosterURL   string     `json:"poster_url,omitempty"`
	Fee         int        `json:"fee"` // rupees, 0 = free
	Capacity    int        `json:"capacity"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      time.Time  `json:"ends_at"`
	RegOpensAt  *time.Time `json:"reg_opens_at,omitempty"`
	RegClosesAt *time.Time `json:"reg_closes_at,omitempty"`
	IsPublished bool       `json:"is_published"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// For API responses
	RegistrationCount int `json:"registration_count,omitempty"`
}

type CreateEventRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Venue       string     `json:"venue"`
	Fee         int        `json:"fee"`
	Capacity    int        `json:"capacity"`
	StartsAt    time.Time  `json:"starts_at" binding:"required"`
	EndsAt      time.Time  `json:"ends_at" binding:"required"`
	RegOpensAt  *time.Time `json:"reg_opens_at,omitempty"`
	RegClosesAt *time.Time `json:"reg_closes_at,omitempty"`
}

type UpdateEventRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Venue       *string    `json:"venue,omitempty"`
	Fee         *int       `json:"fee,omitempty"`
	Capacity    *int       `json:"capacity,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	RegOpensAt  *time.Time `json:"reg_opens_at,omitempty"`
	RegClosesAt *time.Time `json:"reg_closes_at,omitempty"`
	IsPublished *bool      `json:"is_published,omitempty"`
}

// ===========================
// REGISTRATION MODELS
// ===========================

// Registration statuses
const (
	RegistrationPending  = "pending"
	RegistrationApproved = "approved"
	RegistrationRejected = "rejected"
)

// Registration is either a chapter membership application (EventID empty)
// or an event participation record.
type Registration struct {
	ID              string     `json:"id"`
	EventID         string     `json:"event_id,omitempty"` // empty = membership application
	UserID          string     `json:"user_id,omitempty"`
	FullName        string     `json:"full_name"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	Branch          string     `json:"branch,omitempty"`
	CollegeID       string     `json:"college_id,omitempty"`
	PaymentProofURL string     `json:"payment_proof_url,omitempty"`
	PaymentRef      string     `json:"payment_ref,omitempty"`
	Status          string     `json:"status"` // pending, approved, rejected
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	ReviewNote      string     `json:"review_note,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// For API responses
	EventTitle string `json:"event_title,omitempty"`
}

type CreateRegistrationRequest struct {
	EventID    string `form:"event_id"`
	FullName   string `form:"full_name" binding:"required"`
	Email      string `form:"email" binding:"required,email"`
	Phone      string `form:"phone" binding:"required"`
	Branch     string `form:"branch"`
	CollegeID  string `form:"college_id"`
	PaymentRef string `form:"payment_ref"`
}

type ReviewRegistrationRequest struct {
	Status string `json:"status" binding:"required"` // approved or rejected
	Note   string `json:"note,omitempty"`
}

// ===========================
// CERTIFICATE MODELS
// ===========================

// Certificate is issued to a participant for a completed event.
type Certificate struct {
	ID             string    `json:"id"`
	EventID        string    `json:"event_id"`
	RegistrationID string    `json:"registration_id"`
	RecipientName  string    `json:"recipient_name"`
	RecipientEmail string    `json:"recipient_email"`
	Code           string    `json:"code"` // public verification code
	FileURL        string    `json:"file_url,omitempty"`
	IssuedBy       string    `json:"issued_by,omitempty"`
	IssuedAt       time.Time `json:"issued_at"`
	IsRevoked      bool      `json:"is_revoked"`

	// For API responses
	EventTitle string `json:"event_title,omitempty"`
}

type IssueCertificateRequest struct {
	EventID        string `json:"event_id" binding:"required"`
	RegistrationID string `json:"registration_id" binding:"required"`
}

// AccessKey authenticates external verification kiosks against the
// certificate endpoints. Only the bcrypt hash is stored.
type AccessKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	CreatedBy  string     `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	IsActive   bool       `json:"is_active"`
}

// ===========================
// GALLERY MODELS
// ===========================

// GalleryItem is a photo or video associated with an event or album.
type GalleryItem struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id,omitempty"`
	Album      string    `json:"album,omitempty"`
	Caption    string    `json:"caption,omitempty"`
	MediaURL   string    `json:"media_url"`
	MediaType  string    `json:"media_type"` // image, video
	UploadedBy string    `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ===========================
// NOTIFICATION MODELS
// ===========================

// Notification delivery statuses
const (
	NotificationQueued = "queued"
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)

// Notification is a notice pushed to members (and optionally to devices
// through FCM by the notification worker).
type Notification struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Audience    string     `json:"audience"` // all, or a role name
	LinkURL     string     `json:"link_url,omitempty"`
	Status      string     `json:"status"` // queued, sent, failed
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

type CreateNotificationRequest struct {
	Title    string `json:"title" binding:"required"`
	Body     string `json:"body" binding:"required"`
	Audience string `json:"audience,omitempty"`
	LinkURL  string `json:"link_url,omitempty"`
}

// ===========================
// TEAM MODELS
// ===========================

// TeamMember is a public team-page entry (execom, faculty advisors).
type TeamMember struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  string    `json:"position"`
	Wing      string    `json:"wing,omitempty"` // technical, media, management
	PhotoURL  string    `json:"photo_url,omitempty"`
	LinkedIn  string    `json:"linkedin,omitempty"`
	Email     string    `json:"email,omitempty"`
	SortOrder int       `json:"sort_order"`
	Year      int       `json:"year"` // academic year of tenure
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type UpsertTeamMemberRequest struct {
	Name      string `json:"name" binding:"required"`
	Position  string `json:"position" binding:"required"`
	Wing      string `json:"wing,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Email     string `json:"email,omitempty"`
	SortOrder int    `json:"sort_order"`
	Year      int    `json:"year"`
}

// ===========================
// CONTACT MODELS
// ===========================

// ContactMessage is a message submitted through the public contact form.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateContactMessageRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message" binding:"required"`
}

// ===========================
// DEVICE MODELS
// ===========================

// Device holds a registered FCM token for push delivery.
type Device struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FCMToken  string    `json:"fcm_token"`
	Platform  string    `json:"platform,omitempty"` // android, ios, web
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
