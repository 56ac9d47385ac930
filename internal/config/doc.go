// Package config — загрузка и перезагрузка конфигурации воркера.
//
// Источники, в порядке наложения:
//  1. Значения по умолчанию
//  2. YAML-файл (секция spark:)
//  3. Переменные окружения SPARK_*
//
// Store держит активный иммутабельный снимок. Перечитывание происходит
// только на reload-чекпоинте основного цикла (по SIGHUP, изменению файла
// или контрольному сообщению), никогда — посреди транзакции.
package config
