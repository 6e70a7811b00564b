package profile

import (
	"context"
	"net/http"

	"bloodlink/internal/modules/userdata"
)

type UpdateProfileRequest struct {
	Name   *string           `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Email  *string           `json:"email,omitempty" validate:"omitempty,email"`
	Groups *[]userdata.Group `json:"groups,omitempty" validate:"omitempty,dive"`
}

type UpdatePreferencesRequest struct {
	Language             *string `json:"language,omitempty" validate:"omitempty,oneof=ca es en"`
	Theme                *string `json:"theme,omitempty" validate:"omitempty,oneof=light dark auto"`
	NotificationsEnabled *bool   `json:"notificationsEnabled,omitempty"`
}

type RegisterDeviceTokenRequest struct {
	DeviceToken string `json:"device_token" validate:"required,max=4096"`
	DeviceType  string `json:"device_type" validate:"omitempty,oneof=android ios web"`
}

type UnregisterDeviceTokenRequest struct {
	DeviceToken string `json:"device_token" validate:"required"`
}

type Controller interface {
	UpdateProfile(w http.ResponseWriter, r *http.Request)
	UpdatePreferences(w http.ResponseWriter, r *http.Request)
	RegisterDeviceToken(w http.ResponseWriter, r *http.Request)
	UnregisterDeviceToken(w http.ResponseWriter, r *http.Request)
}

type UseCase interface {
	UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*userdata.Profile, error)
	UpdatePreferences(ctx context.Context, userID string, req *UpdatePreferencesRequest) (*userdata.Preferences, error)
	RegisterDeviceToken(ctx context.Context, userID string, token string) error
	UnregisterDeviceToken(ctx context.Context, userID string, token string) error
}
