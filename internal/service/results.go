package service

import (
	"math"

	"poll_web/internal/models"
)

// openEndedBucket 是開放式問答唯一的合成結果桶名稱
const openEndedBucket = "responses"

// initialResults 依題目選項建立全零的初始統計
// 開放式問答沒有選項，只有一個收集文字回覆的 responses 桶
func initialResults(qType models.QuestionType, options []string) []models.PollResult {
	if qType == models.QuestionTypeOpenEnded {
		return []models.PollResult{
			{Option: openEndedBucket, Count: 0, Percentage: 0, TextResponses: []string{}},
		}
	}

	results := make([]models.PollResult, 0, len(options))
	for _, opt := range options {
		results = append(results, models.PollResult{Option: opt, Count: 0, Percentage: 0})
	}
	return results
}

// computeResults 由完整的選票清單重新計算統計結果，純函式、不做任何 I/O
// 封閉題型按選項分組計數，百分比四捨五入為整數；零票時百分比為 0
// 開放式問答回傳單一 responses 桶，計數等於總票數，百分比固定為 100
func computeResults(poll *models.Poll) []models.PollResult {
	totalVotes := len(poll.Votes)

	if poll.Type == models.QuestionTypeOpenEnded {
		responses := make([]string, 0, totalVotes)
		for _, v := range poll.Votes {
			responses = append(responses, v.Choice)
		}
		return []models.PollResult{
			{Option: openEndedBucket, Count: totalVotes, Percentage: 100, TextResponses: responses},
		}
	}

	results := make([]models.PollResult, 0, len(poll.Options))
	for _, opt := range poll.Options {
		count := 0
		for _, v := range poll.Votes {
			if v.Choice == opt {
				count++
			}
		}

		percentage := 0
		if totalVotes > 0 {
			percentage = int(math.Round(float64(count) / float64(totalVotes) * 100))
		}
		results = append(results, models.PollResult{Option: opt, Count: count, Percentage: percentage})
	}
	return results
}

// containsOption 檢查選項是否存在於題目的選項清單中
func containsOption(options []string, choice string) bool {
	for _, opt := range options {
		if opt == choice {
			return true
		}
	}
	return false
}
