package models

const SettingLikesEnabled = "likes_enabled"

type Setting struct {
	Key   string
	Value string
}
