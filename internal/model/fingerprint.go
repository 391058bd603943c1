package model

import "time"

// FingerprintRetention bounds how long fingerprints participate in
// duplicate comparison before the cleanup sweep may drop them.
const FingerprintRetention = 90 * 24 * time.Hour

// ImageFingerprint stores the three hash variants for an accepted image.
// Created once per admitted upload, never mutated.
type ImageFingerprint struct {
	SubmissionID string    `json:"submissionId"`
	OwnerUserID  string    `json:"userId"`
	Perceptual   uint64    `json:"-"`
	Average      uint64    `json:"-"`
	Difference   uint64    `json:"-"`
	IPHash       string    `json:"-"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// BotPattern flags a perceptual hash seen across several distinct accounts
// inside a short window. Detection never rejects the triggering submission;
// it exists for investigation and feeds the abuse log.
type BotPattern struct {
	ID          int64     `json:"id"`
	Perceptual  uint64    `json:"-"`
	OwnerCount  int       `json:"ownerCount"`
	Confidence  float64   `json:"confidence"`
	FlagStatus  string    `json:"flagStatus"`
	FirstSeen   time.Time `json:"firstSeen"`
	DetectedAt  time.Time `json:"detectedAt"`
}
