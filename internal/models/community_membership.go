package models

import "time"

// MembershipRole defines a member's role in a community.
type MembershipRole string

const (
	// MembershipRoleOwner is the community owner role.
	MembershipRoleOwner MembershipRole = "owner"
	// MembershipRoleMember is the default member role.
	MembershipRoleMember MembershipRole = "member"
)

// CommunityMembership maps users to communities and tracks role.
type CommunityMembership struct {
	CommunityID uint           `gorm:"primaryKey;autoIncrement:false" json:"community_id"`
	Community   *Community     `gorm:"foreignKey:CommunityID" json:"community,omitempty"`
	UserID      uint           `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	User        *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role        MembershipRole `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (CommunityMembership) TableName() string {
	return "community_memberships"
}
