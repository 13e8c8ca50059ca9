package repo

import (
	"time"

	"drinktea/internal/domain"
)

type seedTea struct {
	name, origin, spec, intro, cover string
	category                         domain.Category
	year, priceMin, priceMax, weight int
}

var demoTeas = []seedTea{
	{"老班章古树普洱", "云南西双版纳", "357g/饼", "选用老班章古树茶青，经传统工艺压制，茶汤金黄透亮，香气高扬，回甘持久。", "https://images.unsplash.com/photo-1544787219-7f47ccb76574?w=800", domain.CategoryPuEr, 2020, 1200, 1800, 80},
	{"白毫银针", "福建福鼎", "250g/盒", "白茶中的珍品，满披白毫，如银似雪。清香幽雅，鲜爽甘醇，是白茶中的最高等级。", "https://images.unsplash.com/photo-1558160074-4d7d8bdf4256?w=800", domain.CategoryWhite, 2023, 800, 1200, 75},
	{"大红袍", "福建武夷山", "150g/罐", "武夷岩茶之王，产于九龙窠悬崖峭壁。香气馥郁，岩韵明显，七泡有余香。", "https://images.unsplash.com/photo-1576092768241-dec231879fc3?w=800", domain.CategoryYancha, 2022, 600, 900, 70},
	{"金骏眉", "福建武夷山", "250g/盒", "正山小种的高端品种，全程由制茶师手工制作。汤色金黄，香气花果香明显。", "https://images.unsplash.com/photo-1597318181409-cf64d0b5d8a2?w=800", domain.CategoryBlack, 2023, 500, 750, 65},
	{"冰岛古树普洱", "云南临沧", "357g/饼", "冰岛老寨古树茶，甜度突出，生津迅速，喉韵深远，是普洱茶中的极品。", "https://images.unsplash.com/photo-1594631252845-29fc4cc8cde9?w=800", domain.CategoryPuEr, 2019, 2000, 2800, 85},
	{"白牡丹", "福建福鼎", "300g/盒", "采摘一芽一叶或一芽二叶，形似花朵。滋味清淡回甘，花香清雅。", "https://images.unsplash.com/photo-1571934811356-5cc061b6821f?w=800", domain.CategoryWhite, 2022, 350, 500, 60},
	{"肉桂", "福建武夷山", "200g/罐", "武夷岩茶当家品种之一，香气辛锐持久，桂皮香气明显，滋味醇厚甘爽。", "https://images.unsplash.com/photo-1564890369478-c89ca6d9cde9?w=800", domain.CategoryYancha, 2021, 450, 650, 55},
	{"祁门红茶", "安徽祁门", "250g/盒", "世界三大高香红茶之一，有独特的祁门香（似花、似果、似蜜），汤色红艳明亮。", "https://images.unsplash.com/photo-1544787219-7f47ccb76574?w=800", domain.CategoryBlack, 2023, 300, 450, 50},
	{"易武正山", "云南西双版纳", "357g/饼", "易武茶区代表，口感柔和细腻，苦涩度低，回甘生津明显，适合陈化。", "https://images.unsplash.com/photo-1571934811356-5cc061b6821f?w=800", domain.CategoryPuEr, 2018, 800, 1200, 60},
	{"水仙", "福建武夷山", "180g/罐", "武夷岩茶传统名丛，茶汤醇厚，兰花香明显，岩韵突出，叶底软亮。", "https://images.unsplash.com/photo-1558160074-4d7d8bdf4256?w=800", domain.CategoryYancha, 2020, 400, 580, 55},
}

// DemoTeas возвращает демонстрационный каталог. id не заполнены, created_at равен now.
func DemoTeas(now time.Time) []domain.Tea {
	now = now.UTC()
	out := make([]domain.Tea, 0, len(demoTeas))
	for _, s := range demoTeas {
		priceMin, priceMax, intro := s.priceMin, s.priceMax, s.intro
		out = append(out, domain.Tea{
			Name:      s.name,
			Category:  s.category,
			Year:      s.year,
			Origin:    s.origin,
			Spec:      s.spec,
			PriceMin:  &priceMin,
			PriceMax:  &priceMax,
			Intro:     &intro,
			CoverURL:  s.cover,
			Status:    domain.TeaStatusOnline,
			Weight:    s.weight,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return out
}
