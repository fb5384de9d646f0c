package foodai

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hitoshi/fastrack/internal/model"
)

// フォールバック対象とする入力の最大語数
const maxFallbackWords = 4

// commonFood は代表的な食品の1単位あたりの栄養素。
type commonFood struct {
	name      string
	keywords  []string
	unit      string
	nutrition model.Nutrition
}

var commonFoods = []commonFood{
	{"apple", []string{"apple", "apples", "りんご"}, "medium", model.Nutrition{Calories: 95, ProteinG: 0.5, CarbsG: 25, FatG: 0.3, FiberG: 4.4}},
	{"banana", []string{"banana", "bananas", "バナナ"}, "medium", model.Nutrition{Calories: 105, ProteinG: 1.3, CarbsG: 27, FatG: 0.4, FiberG: 3.1}},
	{"egg", []string{"egg", "eggs", "卵", "ゆで卵"}, "large", model.Nutrition{Calories: 72, ProteinG: 6.3, CarbsG: 0.4, FatG: 4.8}},
	{"rice", []string{"rice", "ご飯", "白米"}, "cup", model.Nutrition{Calories: 206, ProteinG: 4.3, CarbsG: 45, FatG: 0.4, FiberG: 0.6}},
	{"chicken breast", []string{"chicken breast", "chicken breasts", "鶏むね肉"}, "100g", model.Nutrition{Calories: 165, ProteinG: 31, FatG: 3.6}},
	{"bread", []string{"bread", "toast", "食パン"}, "slice", model.Nutrition{Calories: 79, ProteinG: 2.7, CarbsG: 15, FatG: 1, FiberG: 0.8}},
	{"milk", []string{"milk", "牛乳"}, "cup", model.Nutrition{Calories: 149, ProteinG: 7.7, CarbsG: 12, FatG: 7.9}},
	{"oatmeal", []string{"oatmeal", "oats", "オートミール"}, "cup", model.Nutrition{Calories: 158, ProteinG: 6, CarbsG: 27, FatG: 3.2, FiberG: 4}},
	{"coffee", []string{"coffee", "コーヒー"}, "cup", model.Nutrition{Calories: 2, ProteinG: 0.3}},
	{"avocado", []string{"avocado", "avocados", "アボカド"}, "medium", model.Nutrition{Calories: 240, ProteinG: 3, CarbsG: 12.8, FatG: 22, FiberG: 10}},
	{"salmon", []string{"salmon", "鮭", "サーモン"}, "100g", model.Nutrition{Calories: 208, ProteinG: 20, FatG: 13}},
	{"yogurt", []string{"yogurt", "yoghurt", "ヨーグルト"}, "cup", model.Nutrition{Calories: 149, ProteinG: 8.5, CarbsG: 11.4, FatG: 8}},
	{"orange", []string{"orange", "oranges", "オレンジ"}, "medium", model.Nutrition{Calories: 62, ProteinG: 1.2, CarbsG: 15.4, FatG: 0.2, FiberG: 3.1}},
	{"almonds", []string{"almonds", "almond", "アーモンド"}, "oz", model.Nutrition{Calories: 164, ProteinG: 6, CarbsG: 6.1, FatG: 14.2, FiberG: 3.5}},
	{"broccoli", []string{"broccoli", "ブロッコリー"}, "cup", model.Nutrition{Calories: 31, ProteinG: 2.5, CarbsG: 6, FatG: 0.3, FiberG: 2.4}},
	{"tofu", []string{"tofu", "豆腐"}, "100g", model.Nutrition{Calories: 76, ProteinG: 8, CarbsG: 1.9, FatG: 4.8, FiberG: 0.3}},
	{"natto", []string{"natto", "納豆"}, "pack", model.Nutrition{Calories: 90, ProteinG: 7.4, CarbsG: 5.4, FatG: 4.5, FiberG: 3}},
}

// keywordIndex はキーワードを長い順に並べた検索表。"chicken breast" を "chicken" より先に照合する。
var keywordIndex = buildKeywordIndex()

type keywordEntry struct {
	keyword string
	food    *commonFood
}

func buildKeywordIndex() []keywordEntry {
	var idx []keywordEntry
	for i := range commonFoods {
		for _, kw := range commonFoods[i].keywords {
			idx = append(idx, keywordEntry{keyword: kw, food: &commonFoods[i]})
		}
	}
	sort.SliceStable(idx, func(i, j int) bool { return len(idx[i].keyword) > len(idx[j].keyword) })
	return idx
}

var numberWords = map[string]float64{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10, "half": 0.5,
}

// fallbackModifiers は食品名と並んでいてもフォールバックを妨げない単位・調理法の語。
var fallbackModifiers = map[string]bool{
	"cup": true, "cups": true, "slice": true, "slices": true, "piece": true, "pieces": true,
	"bowl": true, "bowls": true, "glass": true, "glasses": true, "pack": true, "packs": true,
	"serving": true, "servings": true, "g": true, "grams": true, "oz": true, "of": true,
	"small": true, "medium": true, "large": true, "whole": true, "plain": true,
	"grilled": true, "boiled": true, "fried": true, "steamed": true, "scrambled": true,
	"baked": true, "raw": true, "black": true,
}

// matchFallback は短い入力を組み込みの食品表で解決する。該当しない場合はfalseを返す。
// 先頭の数量（"2 eggs"、"two eggs"）で栄養素を換算する。
// 食品語が1つで、残りが単位・調理法の語だけの場合に限る。複数の食品や接続語を含む入力はAIに回す。
func matchFallback(text string) (*Result, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	words := strings.Fields(normalized)
	if len(words) == 0 || len(words) > maxFallbackWords {
		return nil, false
	}

	quantity := 1.0
	if q, ok := parseQuantity(words[0]); ok && len(words) > 1 {
		quantity = q
		words = words[1:]
	}
	rest := " " + strings.Join(words, " ") + " "

	for _, e := range keywordIndex {
		remaining, ok := removeKeyword(rest, e.keyword)
		if !ok {
			continue
		}
		if !onlyModifiers(remaining) {
			return nil, false
		}
		item := Item{
			Name:      e.food.name,
			Quantity:  quantity,
			Unit:      e.food.unit,
			Nutrition: roundNutrition(e.food.nutrition.Scale(quantity)),
		}
		return &Result{
			Items:      []Item{item},
			Totals:     item.Nutrition,
			Confidence: ConfidenceMedium,
			Source:     SourceFallback,
		}, true
	}
	return nil, false
}

// removeKeyword は最初に一致したキーワードを取り除いた残りを返す。
// 英字キーワードは語単位で、それ以外は部分文字列で照合する。
func removeKeyword(padded, keyword string) (string, bool) {
	if isASCII(keyword) {
		keyword = " " + keyword + " "
	}
	if !strings.Contains(padded, keyword) {
		return "", false
	}
	return strings.Replace(padded, keyword, " ", 1), true
}

func onlyModifiers(s string) bool {
	for _, w := range strings.Fields(s) {
		if !fallbackModifiers[w] {
			return false
		}
	}
	return true
}

func parseQuantity(word string) (float64, bool) {
	if q, ok := numberWords[word]; ok {
		return q, true
	}
	q, err := strconv.ParseFloat(word, 64)
	if err != nil || math.IsNaN(q) || math.IsInf(q, 0) || q <= 0 || q > 100 {
		return 0, false
	}
	return q, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
