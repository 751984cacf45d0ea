package taxonomy

import "sync"

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
)

// Default returns the built-in taxonomy. It is built once and shared.
func Default() *Taxonomy {
	defaultOnce.Do(func() {
		t, err := New(defaultCategories(), defaultSubcategories(), defaultAliases())
		if err != nil {
			panic("taxonomy: invalid built-in taxonomy: " + err.Error())
		}
		defaultTax = t
	})
	return defaultTax
}

func defaultCategories() []Category {
	return []Category{
		{Key: "food", Label: "Еда"},
		{Key: "transport", Label: "Транспорт"},
		{Key: "home", Label: "Дом"},
		{Key: "health", Label: "Здоровье"},
		{Key: "fun", Label: "Развлечения"},
		{Key: "shopping", Label: "Покупки"},
		{Key: "subscriptions", Label: "Подписки"},
		{Key: OtherCategory, Label: "Другое"},
	}
}

// Order matters: earlier subcategories win ties.
func defaultSubcategories() []Subcategory {
	return []Subcategory{
		{
			Key:      "food_out",
			Label:    "Еда вне дома",
			Category: "food",
			Keywords: []string{
				"кофе", "капучино", "латте", "чай", "обед", "ужин", "завтрак", "кафе",
				"ресторан", "столовая", "фастфуд", "пицца", "бургер", "суши", "шаурма",
			},
		},
		{
			Key:      "food_groceries",
			Label:    "Продукты",
			Category: "food",
			Keywords: []string{
				"продукты", "магазин", "супермаркет", "гипермаркет", "еда домой",
				"овощи", "фрукты", "молоко", "хлеб", "мясо", "крупа",
			},
		},
		{
			Key:      "transport_taxi",
			Label:    "Такси",
			Category: "transport",
			Keywords: []string{"такси", "поездка", "трансфер"},
		},
		{
			Key:      "transport_public",
			Label:    "Общественный транспорт",
			Category: "transport",
			Keywords: []string{"метро", "автобус", "трамвай", "электричка", "поезд", "проезд"},
		},
		{
			Key:      "transport_car",
			Label:    "Авто расходы",
			Category: "transport",
			Keywords: []string{"бензин", "топливо", "заправка", "парковка", "шиномонтаж", "масло"},
		},
		{
			Key:      "home_rent",
			Label:    "Жилье и аренда",
			Category: "home",
			Keywords: []string{"аренда", "ипотека", "квартира", "жилье"},
		},
		{
			Key:      "home_utilities",
			Label:    "Коммунальные",
			Category: "home",
			Keywords: []string{"жкх", "коммуналка", "электричество", "вода", "газ", "интернет"},
		},
		{
			Key:      "health_medicine",
			Label:    "Лекарства",
			Category: "health",
			Keywords: []string{"аптека", "лекарства", "таблетки", "витамины"},
		},
		{
			Key:      "health_doctors",
			Label:    "Врачи и анализы",
			Category: "health",
			Keywords: []string{"врач", "клиника", "анализы", "стоматолог", "мрт", "узи"},
		},
		{
			Key:      "fun_events",
			Label:    "Развлечения",
			Category: "fun",
			Keywords: []string{"кино", "театр", "концерт", "бар", "клуб", "игры"},
		},
		{
			Key:      "shopping_clothes",
			Label:    "Одежда и обувь",
			Category: "shopping",
			Keywords: []string{"одежда", "обувь", "куртка", "джинсы", "кроссовки"},
		},
		{
			Key:      "shopping_other",
			Label:    "Покупки прочее",
			Category: "shopping",
			Keywords: []string{"покупка", "товар", "заказ"},
		},
		{
			Key:      "subscriptions_digital",
			Label:    "Цифровые подписки",
			Category: "subscriptions",
			Keywords: []string{"подписка", "премиум", "музыка", "видео", "облако"},
		},
	}
}

func defaultAliases() map[string]string {
	return map[string]string{
		"еда":         "food",
		"транспорт":   "transport",
		"дом":         "home",
		"здоровье":    "health",
		"развлечения": "fun",
		"покупки":     "shopping",
		"подписки":    "subscriptions",
		"другое":      OtherCategory,
	}
}
