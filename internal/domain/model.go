package domain

import "time"

// UserModel is the GORM model for users table.
type UserModel struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	FullName     string    `gorm:"type:varchar(100);not null"`
	ProfilePic   string    `gorm:"type:varchar(1024)"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// TableName specifies the table name for UserModel.
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts UserModel to domain User.
func (m *UserModel) ToDomain() *User {
	return &User{
		ID:           m.ID,
		Email:        m.Email,
		FullName:     m.FullName,
		ProfilePic:   m.ProfilePic,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// UserToModel converts domain User to UserModel.
func UserToModel(u *User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		ProfilePic:   u.ProfilePic,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// MessageModel is the GORM model for messages table. IDs are ULIDs, so
// ordering by id within a conversation is creation order.
type MessageModel struct {
	ID              string    `gorm:"type:char(26);primaryKey;index:idx_conversation_id,priority:2"`
	ConversationKey string    `gorm:"type:varchar(80);index:idx_conversation_id,priority:1;not null"`
	SenderID        string    `gorm:"type:varchar(36);not null"`
	RecipientID     string    `gorm:"type:varchar(36);not null"`
	Text            string    `gorm:"type:text"`
	ImageURL        string    `gorm:"type:varchar(1024)"`
	CreatedAt       time.Time `gorm:"not null"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Text:        m.Text,
		ImageURL:    m.ImageURL,
		CreatedAt:   m.CreatedAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(m *Message) *MessageModel {
	return &MessageModel{
		ID:              m.ID,
		ConversationKey: ConversationKey(m.SenderID, m.RecipientID),
		SenderID:        m.SenderID,
		RecipientID:     m.RecipientID,
		Text:            m.Text,
		ImageURL:        m.ImageURL,
		CreatedAt:       m.CreatedAt,
	}
}
