package dto

import "github.com/google/uuid"

type CreateCameraRequest struct {
	Name         string `json:"name" binding:"required"`
	Type         string `json:"type" binding:"required,oneof=protect snapshot"`
	AnalysisMode string `json:"analysis_mode" binding:"omitempty,oneof=video_native multi_frame single_frame"`
	Enabled      *bool  `json:"enabled,omitempty"`
}

type UpdateCameraRequest struct {
	Name         string `json:"name"`
	Type         string `json:"type" binding:"omitempty,oneof=protect snapshot"`
	AnalysisMode string `json:"analysis_mode" binding:"omitempty,oneof=video_native multi_frame single_frame"`
	Enabled      *bool  `json:"enabled,omitempty"`
}

type CameraResponse struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	AnalysisMode string         `json:"analysis_mode"`
	Enabled      bool           `json:"enabled"`
	Zones        []ZoneResponse `json:"zones"`
	ZoneVersion  int64          `json:"zone_version"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

type ZoneRequest struct {
	ID       string       `json:"id"`
	Name     string       `json:"name" binding:"required"`
	Vertices [][2]float64 `json:"vertices" binding:"required"`
	Enabled  *bool        `json:"enabled,omitempty"`
}

type UpdateZonesRequest struct {
	Zones []ZoneRequest `json:"zones" binding:"required"`
}

type ZoneResponse struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Vertices [][2]float64 `json:"vertices"`
	Enabled  bool         `json:"enabled"`
}

type ZonesResponse struct {
	CameraID    uuid.UUID      `json:"camera_id"`
	Zones       []ZoneResponse `json:"zones"`
	ZoneVersion int64          `json:"zone_version"`
}
