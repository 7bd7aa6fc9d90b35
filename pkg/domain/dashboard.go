package domain

// DashboardSummary is the aggregate shown on the dashboard.
type DashboardSummary struct {
	TotalPatients  int             `json:"total_patients"`
	NewThisMonth   int             `json:"new_this_month"`
	ActiveCases    int             `json:"active_cases"`
	AdmittedWeek   int             `json:"admitted_this_week"`
	CriticalCases  int             `json:"critical_cases"`
	MedicalRecords int             `json:"medical_records"`
	UpdatedToday   int             `json:"updated_today"`
	PendingTests   int             `json:"pending_tests"`
	UnreadReports  int             `json:"unread_reports"`
	RecentPatients []RecentPatient `json:"recent_patients"`
}

// RecentPatient is a row of the dashboard's recent admissions table.
type RecentPatient struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Age           int    `json:"age"`
	AdmissionDate string `json:"admission_date"`
	Status        string `json:"status"`
	Diagnosis     string `json:"diagnosis"`
}
