package domain

import "time"

// User 账号（对应 users 表）
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`

	// 与 Role 对应的唯一 profile；另一个恒为 nil
	ClientProfile   *ClientProfile   `json:"clientProfile,omitempty"`
	ProviderProfile *ProviderProfile `json:"providerProfile,omitempty"`
}

// ClientProfile 对应 client_profiles 表（与 CLIENT 用户 1:1）
type ClientProfile struct {
	ID        string  `json:"id,omitempty"`
	UserID    string  `json:"userId,omitempty"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
}

// ProviderProfile 对应 provider_profiles 表（与 PROVIDER 用户 1:1）
type ProviderProfile struct {
	ID            string  `json:"id,omitempty"`
	UserID        string  `json:"userId,omitempty"`
	FirstName     *string `json:"firstName,omitempty"`
	LastName      *string `json:"lastName,omitempty"`
	ClinicName    *string `json:"clinicName,omitempty"`
	LicenseNumber *string `json:"licenseNumber,omitempty"`
}

// ProfileFields 注册时提交的展示字段；按角色取用
type ProfileFields struct {
	FirstName     *string
	LastName      *string
	ClinicName    *string
	LicenseNumber *string
}

// NewUser is the registration input for the record store.
type NewUser struct {
	Email        string
	PasswordHash string
	Role         Role
	Profile      ProfileFields
}

// CaseParty is a participant of a case as seen from the case payload.
type CaseParty struct {
	ID              string           `json:"id"`
	Email           string           `json:"email"`
	ClientProfile   *ClientProfile   `json:"clientProfile,omitempty"`
	ProviderProfile *ProviderProfile `json:"providerProfile,omitempty"`
}

// PartyOf builds the full participant view of a user.
func PartyOf(u *User) *CaseParty {
	if u == nil {
		return nil
	}
	return &CaseParty{
		ID:              u.ID,
		Email:           u.Email,
		ClientProfile:   u.ClientProfile,
		ProviderProfile: u.ProviderProfile,
	}
}

// Summary keeps only the public display attributes (names, clinic).
func (p *CaseParty) Summary() *CaseParty {
	if p == nil {
		return nil
	}
	out := &CaseParty{ID: p.ID, Email: p.Email}
	if p.ClientProfile != nil {
		out.ClientProfile = &ClientProfile{
			FirstName: p.ClientProfile.FirstName,
			LastName:  p.ClientProfile.LastName,
		}
	}
	if p.ProviderProfile != nil {
		out.ProviderProfile = &ProviderProfile{
			FirstName:  p.ProviderProfile.FirstName,
			LastName:   p.ProviderProfile.LastName,
			ClinicName: p.ProviderProfile.ClinicName,
		}
	}
	return out
}

// Identity 已校验凭证解析出的身份
type Identity struct {
	UserID string
	Role   Role
	Email  string
}
