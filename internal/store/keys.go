package store

import "fmt"

// Logical key layout shared by every component.

func AsteroidKey(postId string) string {
	return "asteroid:" + postId
}

func EquipmentKey(playerId, postId string) string {
	return fmt.Sprintf("equipment:%s:%s", playerId, postId)
}

func EquipmentInitializedKey(playerId, postId string) string {
	return fmt.Sprintf("equipment-initialized:%s:%s", playerId, postId)
}

func InventoryKey(playerId, postId string) string {
	return fmt.Sprintf("inventory:%s:%s", playerId, postId)
}

func LeaderboardKey(postId string) string {
	return "leaderboard:" + postId
}

func CooldownKey(playerId, postId, tool string) string {
	return fmt.Sprintf("cooldown:%s:%s:%s", playerId, postId, tool)
}

func PostKey(postId string) string {
	return "post:" + postId
}

func PostsKey(community string) string {
	return "posts:" + community
}
