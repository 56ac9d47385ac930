// Package mq — контрольный канал воркера поверх RabbitMQ.
//
// Структура:
//   - connection.go — соединение с брокером (reconnect, graceful shutdown)
//   - control.go    — очередь spark.control: reload / terminate уведомления
//
// Канал необязателен: без брокера воркер управляется OS-сигналами и
// изменениями конфиг-файла. Обработчик контрольного сообщения ничего
// не вычисляет — только ставит флаг и будит основной цикл.
package mq
