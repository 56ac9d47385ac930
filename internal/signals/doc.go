// Package signals — мост между асинхронными источниками уведомлений
// и основным циклом воркера.
//
// Инвариант: в контексте уведомления разрешены только установка флага
// и неблокирующее пробуждение. Перечитывание конфигурации, запросы к БД
// и вся остальная работа выполняются исключительно в основном цикле.
package signals
