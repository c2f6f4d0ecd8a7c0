package settings

// Settings keys and defaults for school-wide display values.
const (
	// SchoolNameKey is the settings key for the school display name.
	SchoolNameKey = "SCHOOL_NAME"
	// DefaultSchoolName is the fallback school display name.
	DefaultSchoolName = "Mokyklos pavadinimas"
	// SchoolLogoURLKey is the settings key for the school logo URL.
	SchoolLogoURLKey = "SCHOOL_LOGO_URL"
	// LoginBackgroundURLKey is the settings key for the login page background URL.
	LoginBackgroundURLKey = "LOGIN_BACKGROUND_URL"
	// TeacherGuidelinesKey is the settings key for the awarding guidelines text.
	TeacherGuidelinesKey = "TEACHER_GUIDELINES"
)
