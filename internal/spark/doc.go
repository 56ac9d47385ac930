// Package spark реализует основной цикл воркера.
//
// # Обзор
//
// Воркер с фиксированным интервалом (или по cron-расписанию) проверяет,
// существует ли в каталоге базы процедура schema.procedure, и если да —
// вызывает её в собственной транзакции. Это "искра" для внешних
// планировщиков: дешёвый периодический тик, порождаемый рядом с базой.
//
// # Машина состояний
//
//	Waiting → {Reloading} → Executing → Waiting
//
// из любого состояния — безусловный переход в Terminating.
//
//   - Waiting: таймированное ожидание, прерываемое флагами уведомлений
//     (signals.Flags) или смертью сервера (repo.WatchHost).
//   - Reloading: если запрошен reload — замена активного снимка
//     конфигурации. Единственный reload-чекпоинт за цикл.
//   - Executing: одна транзакция, один check-and-invoke шаг (Invoker.Fire),
//     commit. Фазы Executing строго сериализованы и не прерываются.
//
// # Пути выхода
//
//   - Graceful shutdown — Run возвращает nil, ресурсы освобождены, код 0.
//   - Смерть сервера — Run возвращает ErrHostLost, немедленный выход
//     с кодом 1 без очистки.
//   - FatalError — невосстановимая ошибка запроса; выход с кодом 1,
//     восстановление — рестарт сервисным менеджером. Ретраев внутри
//     процесса нет.
//
// Отсутствие процедуры в каталоге ошибкой не является: цикл молча
// продолжается.
package spark
